package terminal

import (
	"math"
	"math/rand"
)

// Normal is a normal distribution used for a service time.
type Normal struct {
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"stddev"`
}

// Draw samples the distribution, clamped at zero.
func (n Normal) Draw(rng *rand.Rand) float64 {
	v := n.Mean
	if n.StdDev > 0 {
		v += rng.NormFloat64() * n.StdDev
	}
	return math.Max(0, v)
}

// ServiceDistributions describes the crane and lift service times of a run.
type ServiceDistributions struct {
	QCReady      Normal  `yaml:"qc_ready"`
	QCLiftDrop   Normal  `yaml:"qc_lift_drop"`
	QCToShip     Normal  `yaml:"qc_to_ship"`
	ARMGReady    Normal  `yaml:"armg_ready"`
	ARMGLiftDrop Normal  `yaml:"armg_lift_drop"`
	ARMGToYard   Normal  `yaml:"armg_to_yard"`
	HolderJack   Normal  `yaml:"holder_jack"`
	AGVSpeed     float64 `yaml:"agv_speed"`
}

// DefaultServiceDistributions returns the reference terminal's service times.
func DefaultServiceDistributions() ServiceDistributions {
	return ServiceDistributions{
		QCReady:      Normal{Mean: 8, StdDev: 1},
		QCLiftDrop:   Normal{Mean: 1, StdDev: 0.1},
		QCToShip:     Normal{Mean: 5, StdDev: 1},
		ARMGReady:    Normal{Mean: 6, StdDev: 1},
		ARMGLiftDrop: Normal{Mean: 1, StdDev: 0.1},
		ARMGToYard:   Normal{Mean: 4, StdDev: 0.2},
		HolderJack:   Normal{Mean: 0.8, StdDev: 0.02},
		AGVSpeed:     10,
	}
}

// ServiceTimes are the service times of one run. They are drawn once and shared by
// every facility of the run.
type ServiceTimes struct {
	QCReady      float64
	QCLiftDrop   float64
	QCToShip     float64
	ARMGReady    float64
	ARMGLiftDrop float64
	ARMGToYard   float64
	HolderJack   float64
	AGVSpeed     float64
}

// Draw samples every service time, in a fixed order, from rng.
func (d ServiceDistributions) Draw(rng *rand.Rand) ServiceTimes {
	return ServiceTimes{
		QCReady:      d.QCReady.Draw(rng),
		QCLiftDrop:   d.QCLiftDrop.Draw(rng),
		QCToShip:     d.QCToShip.Draw(rng),
		ARMGReady:    d.ARMGReady.Draw(rng),
		ARMGLiftDrop: d.ARMGLiftDrop.Draw(rng),
		ARMGToYard:   d.ARMGToYard.Draw(rng),
		HolderJack:   d.HolderJack.Draw(rng),
		AGVSpeed:     d.AGVSpeed,
	}
}

// maxSpeed is the speed sent to the dispatcher when the run is not paced.
const maxSpeed = 1_000_000

// wireSpeed converts a base AGV speed to the cells-per-wall-second value the
// dispatcher forwards to vehicles.
func wireSpeed(base, factor float64) int {
	if factor <= 0 {
		return maxSpeed
	}
	s := int(base / factor)
	if s < 1 {
		return 1
	}
	if s > maxSpeed {
		return maxSpeed
	}
	return s
}
