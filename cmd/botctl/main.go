package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/wjhpong/binancemakertaker/internal/deploy"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "deploy":
		fs, opts := commonFlags("deploy")
		dryRun := fs.Bool("dry-run", false, "Print remote commands without executing them")
		fs.Parse(os.Args[2:])
		requireTarget(fs, opts)
		opts.DryRun = *dryRun

		if err := deploy.Deploy(*opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "status":
		fs, opts := commonFlags("status")
		fs.Parse(os.Args[2:])
		requireTarget(fs, opts)

		if err := deploy.Status(*opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "logs":
		fs, opts := commonFlags("logs")
		lines := fs.Int("n", 50, "Number of journal lines to print")
		follow := fs.Bool("follow", false, "Keep streaming the journal until interrupted")
		fs.Parse(os.Args[2:])
		requireTarget(fs, opts)

		if err := deploy.Logs(*opts, *lines, *follow); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "restart":
		fs, opts := commonFlags("restart")
		fs.Parse(os.Args[2:])
		requireTarget(fs, opts)

		if err := deploy.Restart(*opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "stop":
		fs, opts := commonFlags("stop")
		fs.Parse(os.Args[2:])
		requireTarget(fs, opts)

		if err := deploy.Stop(*opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// commonFlags defines the flags every command shares. The returned Options
// is filled in by fs.Parse through the bound flag pointers.
func commonFlags(name string) (*flag.FlagSet, *deploy.Options) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	opts := &deploy.Options{}
	fs.StringVar(&opts.TargetSpec, "target", "", "Remote target as user@host[:port] (required)")
	fs.StringVar(&opts.KeyPath, "key", "", "SSH private key path (default: BOTCTL_SSH_KEY, ~/.ssh keys, then ssh-agent)")
	fs.StringVar(&opts.ManifestPath, "f", "", "Path to deploy manifest YAML (default: botdeploy.yaml if present)")
	return fs, opts
}

func requireTarget(fs *flag.FlagSet, opts *deploy.Options) {
	if opts.TargetSpec == "" {
		fmt.Fprintln(os.Stderr, "Error: -target flag is required")
		fs.Usage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage:
  botctl deploy  -target user@host[:port] [-key path] [-f botdeploy.yaml] [-dry-run]
  botctl status  -target user@host[:port] [-key path] [-f botdeploy.yaml]
  botctl logs    -target user@host[:port] [-n lines] [-follow]
  botctl restart -target user@host[:port]
  botctl stop    -target user@host[:port]

Commands:
  deploy     Copy the bot, install dependencies, install the systemd unit and (re)start it
  status     Show the service's systemd status
  logs       Show (or follow) the service journal
  restart    Restart the service and verify it came back up
  stop       Stop the service (it stays enabled for the next boot)

Flags:
  -target string  Remote target as user@host[:port] (required)
  -key string     SSH private key path (default: BOTCTL_SSH_KEY, ~/.ssh keys, then ssh-agent)
  -f string       Path to deploy manifest YAML (default: botdeploy.yaml if present)
  -dry-run        Print remote commands without executing them (deploy only)
  -n int          Number of journal lines to print (logs only, default 50)
  -follow         Keep streaming the journal until interrupted (logs only)`)
}
