package terminal

import (
	"github.com/sirupsen/logrus"

	"github.com/easyterm/easyterm/sim"
)

// SyncInterval is the simulated time between two clock syncs.
const SyncInterval = 0.5

// Clock reports the simulated time to the dispatcher until every task is done or
// nothing else is left to run.
type Clock struct {
	env  *env
	name string
}

func (c *Clock) start() {
	c.env.sim.Process(c.name, c.run)
}

func (c *Clock) run(p *sim.Process) error {
	e := c.env
	for !e.tm.AllDone() && e.sim.Busy() {
		if err := e.syncClock(p); err != nil {
			logrus.Warnf("(%.3f) %s sync failed: %v", p.Now(), c.name, err)
		}
		if err := p.Sleep(SyncInterval); err != nil {
			return err
		}
	}
	logrus.Debugf("(%.3f) %s stopped", p.Now(), c.name)
	return nil
}
