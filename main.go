package main

import (
	"bufio"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chatd/config"
	"chatd/db"
	"chatd/faq"
	"chatd/server"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "chatd").Logger()

	database, err := db.New(cfg.DBPath, cfg.MaxUsers)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open account store")
	}
	defer database.Close()

	// Sessions do not survive a restart; stale flags from the previous run
	// would otherwise read as phantom presence.
	if err := database.ResetPresence(); err != nil {
		log.Fatal().Err(err).Msg("failed to reset presence flags")
	}

	faqSvc := faq.New(cfg.FAQServiceURL, cfg.FAQTimeout, cfg.FAQCacheTTL, log)
	srv := server.New(database, cfg, faqSvc, log)

	var g errgroup.Group

	g.Go(srv.Start)

	g.Go(func() error {
		return runControlSocket(srv, cfg.ControlSock, log)
	})

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan

		log.Info().Str("signal", sig.String()).Msg("shutting down")
		srv.Shutdown("maintenance")
		os.Remove(cfg.ControlSock)
		os.Exit(0)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// runControlSocket serves operator commands (stats, shutdown) on a unix
// socket.
func runControlSocket(srv *server.Server, path string, log zerolog.Logger) error {
	os.Remove(path)

	listener, err := net.Listen("unix", path)
	if err != nil {
		// The control socket is an operator convenience; the chat service
		// runs without it.
		log.Warn().Err(err).Str("path", path).Msg("control socket unavailable")
		return nil
	}
	defer listener.Close()
	defer os.Remove(path)

	log.Info().Str("path", path).Msg("control socket listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if strings.Contains(err.Error(), "use of closed network connection") {
				return nil
			}
			continue
		}

		go handleControlCommand(srv, conn, path, log)
	}
}

func handleControlCommand(srv *server.Server, conn net.Conn, sockPath string, log zerolog.Logger) {
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}

	parts := strings.SplitN(strings.TrimSpace(line), "|", 2)
	switch parts[0] {
	case "stats":
		conn.Write([]byte("OK|" + srv.Stats() + "\n"))

	case "shutdown":
		reason := "maintenance"
		if len(parts) == 2 && parts[1] != "" {
			reason = parts[1]
		}

		conn.Write([]byte("OK|Shutting down\n"))
		conn.Close()

		log.Info().Str("reason", reason).Msg("shutdown requested via control socket")
		srv.Shutdown(reason)
		os.Remove(sockPath)
		os.Exit(0)

	default:
		conn.Write([]byte("ERROR|Unknown command\n"))
	}
}
