package handler

import (
	"github.com/feedsync/backend/internal/interfaces/http/router"
)

// Routes groups the API handlers for registration on a router
func Routes(system *SystemHandler, ingest *IngestionHandler, scrapeJobs *ScrapeHandler) []router.RouteRegistrar {
	sys := router.NewDomainGroup("system", "/system").
		GET("/ping", system.Ping).
		GET("/health", system.Health)

	runs := router.NewDomainGroup("ingestion", "/ingestion").
		POST("/runs", ingest.StartRun).
		GET("/runs", ingest.ListRuns).
		GET("/runs/:id", ingest.GetRun)

	registrars := []router.RouteRegistrar{sys, runs}
	if scrapeJobs != nil {
		registrars = append(registrars, router.NewDomainGroup("scrape", "/scrape-jobs").
			POST("", scrapeJobs.RunJob))
	}
	return registrars
}
