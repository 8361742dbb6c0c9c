package deploy

import (
	"fmt"
	"path"
)

// printCheatSheet prints ready-to-paste follow-up commands for this target.
// It prints after a successful deploy and after a failed health check, so
// the operator always leaves with the commands to poke at the host.
func (d *Deployer) printCheatSheet() {
	ssh := d.target.SSHCommand()
	name := d.man.Service.Name
	dir := d.man.RemoteDir

	fmt.Fprintf(d.out, "\nUseful commands:\n")
	fmt.Fprintf(d.out, "  status       %s 'systemctl status %s --no-pager'\n", ssh, name)
	fmt.Fprintf(d.out, "  journal      %s 'sudo journalctl -fu %s'\n", ssh, name)
	fmt.Fprintf(d.out, "  bot log      %s 'tail -f %s'\n", ssh, path.Join(dir, d.man.LogFile))
	fmt.Fprintf(d.out, "  restart      %s 'sudo systemctl restart %s'\n", ssh, name)
	fmt.Fprintf(d.out, "  stop         %s 'sudo systemctl stop %s'\n", ssh, name)
	fmt.Fprintf(d.out, "  edit config  %s 'vim %s'\n", d.target.SSHCommand("-t"), path.Join(dir, "config.yaml"))
}
