package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/KarpovAlexandrGo/taskboard/docs" // swagger docs, regenerate with `swag init -g cmd/taskboard/main.go`
	"github.com/KarpovAlexandrGo/taskboard/internal/app"
	"github.com/KarpovAlexandrGo/taskboard/pkg/logger"
)

// @title           Taskboard API
// @version         1.0
// @description     Owner-scoped task board: ranked active and completed tasks, completion toggling and reminders.

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization

func main() {
	a, err := app.NewApp()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize app")
	}

	a.Server.Handler = setupSwagger(a.Server.Handler)

	if err := a.Run(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to run app")
	}
}

// setupSwagger serves the Swagger UI next to the API handler.
func setupSwagger(handler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Mount("/", handler)

	return r
}
