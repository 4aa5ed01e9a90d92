/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/anima-frames/engine"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/testbed"
)

func main() {
	configPath := flag.String("config", engine.DefaultConfigPath, "path to the engine configuration")
	flag.Parse()

	cfg, err := engine.LoadConfig(*configPath)
	if err != nil {
		core.LogFatal(err.Error())
	}

	tb, err := testbed.NewTestGame(cfg, *configPath)
	if err != nil {
		core.LogFatal(err.Error())
	}

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal(err.Error())
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// the loop owns the window and the device, so a signal only asks it to stop
	go func() {
		<-sigCh
		e.Quit()
	}()

	runErr := e.Initialize()
	if runErr == nil {
		runErr = e.Run()
	}
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogError(runErr.Error())
		os.Exit(1)
	}
}
