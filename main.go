package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"webshell/backend/localcommand"
	"webshell/backend/sshchannel"
	"webshell/pkg/homedir"
	"webshell/server"
	"webshell/utils"
)

// Version is set via ldflags at build time.
var Version = "unknown_version"

// CommitID is set via ldflags at build time.
var CommitID = "unknown_commit"

func main() {
	app := cli.NewApp()
	app.Name = "webshell"
	app.Version = Version + "+" + CommitID
	app.Usage = "Share a terminal or an SSH session as a web application"
	app.HideHelpCommand = true

	appOptions := &server.Options{}
	if err := utils.ApplyDefaultValues(appOptions); err != nil {
		exit(err, 1)
	}
	backendOptions := &localcommand.Options{}
	if err := utils.ApplyDefaultValues(backendOptions); err != nil {
		exit(err, 1)
	}
	sshOptions := &sshchannel.Options{}
	if err := utils.ApplyDefaultValues(sshOptions); err != nil {
		exit(err, 1)
	}

	cliFlags, err := utils.GenerateFlags(appOptions, backendOptions, sshOptions)
	if err != nil {
		exit(err, 3)
	}

	app.Flags = append(cliFlags,
		&cli.StringFlag{
			Name:    "config",
			Value:   "~/.webshell",
			Usage:   "Config file path",
			EnvVars: []string{"WEBSHELL_CONFIG"},
		},
		&cli.BoolFlag{
			Name:    "ssh",
			Usage:   "Bridge clients to SSH sessions instead of a local command",
			EnvVars: []string{"WEBSHELL_SSH"},
		},
	)

	app.Action = func(c *cli.Context) error {
		configFile := c.String("config")
		expanded, err := homedir.Expand(configFile)
		if err != nil {
			exit(err, 2)
		}
		_, err = os.Stat(expanded)
		if configFile != "~/.webshell" || !os.IsNotExist(err) {
			if err := utils.ApplyConfigFile(configFile, appOptions, backendOptions, sshOptions); err != nil {
				exit(err, 2)
			}
		}

		utils.ApplyFlags(cliFlags, c, appOptions, backendOptions, sshOptions)

		appOptions.EnableBasicAuth = c.IsSet("credential")

		if err := appOptions.Validate(); err != nil {
			exit(err, 6)
		}

		hostname, _ := os.Hostname()

		var factory server.Factory
		if c.Bool("ssh") {
			factory, err = sshchannel.NewFactory(sshOptions)
			if err != nil {
				exit(err, 3)
			}
			appOptions.TitleVariables = map[string]interface{}{
				"command":  "ssh",
				"argv":     []string{},
				"hostname": hostname,
			}
		} else {
			args := c.Args().Slice()
			command := os.Getenv("SHELL")
			if command == "" {
				command = "/bin/sh"
			}
			var argv []string
			if len(args) > 0 {
				command = args[0]
				argv = args[1:]
			}
			factory, err = localcommand.NewFactory(command, argv, backendOptions)
			if err != nil {
				exit(err, 3)
			}
			appOptions.TitleVariables = map[string]interface{}{
				"command":  command,
				"argv":     argv,
				"hostname": hostname,
			}
		}

		srv, err := server.New(factory, appOptions)
		if err != nil {
			exit(err, 3)
		}

		ctx, cancel := context.WithCancel(context.Background())
		gCtx, gCancel := context.WithCancel(context.Background())

		errs := make(chan error, 1)
		go func() {
			errs <- srv.Run(ctx, server.WithGracefullContext(gCtx))
		}()

		err = waitSignals(errs, cancel, gCancel)
		if err != nil && err != context.Canceled {
			fmt.Printf("Error: %s\n", err)
			exit(err, 8)
		}

		return nil
	}

	if err := app.Run(os.Args); err != nil {
		exit(err, 1)
	}
}

func exit(err error, code int) {
	if err != nil {
		fmt.Println(err)
	}
	os.Exit(code)
}

func waitSignals(errs chan error, cancel context.CancelFunc, gracefullCancel context.CancelFunc) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(
		sigChan,
		syscall.SIGINT,
		syscall.SIGTERM,
	)

	select {
	case err := <-errs:
		return err

	case s := <-sigChan:
		switch s {
		case syscall.SIGINT:
			gracefullCancel()
			fmt.Println("C-C to force close")
			select {
			case err := <-errs:
				return err
			case <-sigChan:
				fmt.Println("Force closing...")
				cancel()
				return <-errs
			}
		default:
			cancel()
			return <-errs
		}
	}
}
