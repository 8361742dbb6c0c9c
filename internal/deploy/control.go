package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrServiceInactive marks a deployment whose service did not come up after
// the restart. All provisioning stages succeeded; the failure is the health
// verdict, and the journal tail has already been printed for diagnosis.
var ErrServiceInactive = errors.New("service did not become active")

// restartAndVerify restarts the unit, waits the fixed startup delay and
// queries its state. Restart is used for first deploys too: the unit is
// enabled, so restart starts it if nothing is running. No retry of the start
// attempt itself.
func (d *Deployer) restartAndVerify(ctx context.Context) error {
	name := d.man.Service.Name
	if _, err := d.run(ctx, "restart service", "sudo systemctl restart "+name); err != nil {
		return err
	}

	delay := time.Duration(d.man.Health.StartupDelaySecs) * time.Second
	d.logger.Debug().Dur("delay", delay).Msg("waiting before health check")
	time.Sleep(delay)

	res, err := d.exec.Run(ctx, "systemctl is-active "+name)
	if err != nil {
		return fmt.Errorf("query service state: %w", err)
	}
	state := strings.TrimSpace(string(res.Output))

	if res.ExitCode == 0 {
		if state == "" {
			state = "active"
		}
		fmt.Fprintf(d.out, "      %s is %s\n", name, state)
		return nil
	}
	if state == "" {
		state = "unknown"
	}

	fmt.Fprintf(d.out, "      %s is %s, recent logs:\n", name, state)
	logRes, logErr := d.exec.Run(ctx,
		fmt.Sprintf("sudo journalctl -u %s -n %d --no-pager", name, d.man.Health.JournalLines))
	if logErr == nil {
		d.printIndented(logRes.Output)
	} else {
		d.logger.Warn().Err(logErr).Msg("could not fetch journal tail")
	}

	return fmt.Errorf("service %s reported %q after restart: %w", name, state, ErrServiceInactive)
}
