package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/customeros/mailresponder/config"
	"github.com/customeros/mailresponder/server"
)

func main() {
	app := &cli.App{
		Name:  "mailresponder",
		Usage: "answer unread mail with an automatic reply",
		Commands: []*cli.Command{
			{
				Name:   "server",
				Usage:  "Poll the mailbox on a schedule and serve health endpoints",
				Action: runServer,
			},
			{
				Name:   "poll-once",
				Usage:  "Answer the most recent unread message and exit",
				Action: runOnce,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newServer() (*server.Server, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, err
	}
	return server.NewServer(cfg)
}

func runServer(_ *cli.Context) error {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Mail responder starting up...")

	srv, err := newServer()
	if err != nil {
		return cli.Exit("Server setup failed: "+err.Error(), 1)
	}
	if err := srv.Run(); err != nil {
		return cli.Exit("Server startup failed: "+err.Error(), 1)
	}

	log.Println("Shutdown complete")
	return nil
}

func runOnce(_ *cli.Context) error {
	srv, err := newServer()
	if err != nil {
		return cli.Exit("Server setup failed: "+err.Error(), 1)
	}
	return srv.RunOnce()
}
