/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/prisma/engine/config"
	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/testbed"
)

const configPath = "prisma.toml"

func main() {
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(err)
	}

	watcher, err := config.NewWatcher(configPath, cfg)
	if err != nil {
		panic(err)
	}
	defer watcher.Close()

	app := testbed.New(cfg, watcher)
	if err := app.Initialize(); err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// start shutdown goroutine
	go func() {
		// capture sigterm and other system call here
		<-sigCh
		if err := app.Shutdown(); err != nil {
			core.LogError("shutdown: %s", err.Error())
		}
		os.Exit(0)
	}()

	if err := app.Run(); err != nil {
		core.LogError("run: %s", err.Error())
	}

	if err := app.Shutdown(); err != nil {
		panic(err)
	}
}
