package main

import (
	"collabdocs/handlers/api/documents"
	"collabdocs/handlers/api/summary"
	"collabdocs/handlers/auth"
	"collabdocs/handlers/websocket"
	authMiddleware "collabdocs/middleware"
	"collabdocs/stores"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

func setupRouter(store stores.Store) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Origin", "Host", "Connection", "Accept-Encoding", "Accept-Language", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", auth.HandleSignup(store))
		r.Post("/login", auth.HandleLogin(store))
		r.Post("/logout", auth.HandleLogout(store))
		r.Post("/me", auth.HandleMe(store))
	})

	r.Route("/api/documents", func(r chi.Router) {
		r.Use(authMiddleware.AuthSession(store, store))
		r.Get("/", documents.HandleList(store))
		r.Post("/", documents.HandleCreate(store))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", documents.HandleGet(store))
			r.Put("/", documents.HandleUpdate(store))
			r.Post("/summary", summary.HandleGenerate(store))
		})
	})

	return r
}

func waitForShutdown(io *socketio.Server) {
	exit := make(chan struct{})
	signalC := make(chan os.Signal, 1)

	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range signalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	io.Close(nil)
	os.Exit(0)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3000", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	summary.Init()
	store := stores.GetStore()

	r := setupRouter(store)

	// The collaboration services are wired before any connection is accepted:
	// the session validator gates joins, the registry and tracker own the
	// room state, the relay owns the persistence path.
	rooms := websocket.NewRoomRegistry()
	presence := websocket.NewPresenceTracker(rooms)
	relay := websocket.NewChangeRelay(rooms, store)
	validator := websocket.NewSessionValidator(store, store)
	hub := websocket.NewCollabHub(validator, rooms, presence, relay)

	io := websocket.SetupSocketIO(hub)
	r.Mount("/socket.io/", io.ServeHandler(nil))

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddress, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(io)
}
