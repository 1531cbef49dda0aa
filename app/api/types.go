package api

import (
	"github.com/adamjohnlea/discogs-helper/app/catalog"
	"github.com/adamjohnlea/discogs-helper/app/collection"
	"github.com/adamjohnlea/discogs-helper/app/database"
	"github.com/adamjohnlea/discogs-helper/app/export"
	"github.com/adamjohnlea/discogs-helper/app/importer"
	"github.com/adamjohnlea/discogs-helper/app/lastfm"
	"github.com/adamjohnlea/discogs-helper/app/tasks"
)

type Handler struct {
	catalogClient catalog.ClientInterface
	lastfmClient  lastfm.ClientInterface
	releaseRepo   database.ReleaseRepository
	wantlistRepo  database.WantlistRepository
	collectionSvc *collection.Service
	orchestrator  *importer.Orchestrator
	exporter      *export.Generator
	siteConfig    export.SiteConfig
	scheduler     tasks.TaskSchedulerInterface
}

type addReleaseRequest struct {
	DiscogsID int64  `json:"discogs_id" binding:"required"`
	Notes     string `json:"notes"`
}

type addWantRequest struct {
	DiscogsID int64 `json:"discogs_id" binding:"required"`
}

type updateNotesRequest struct {
	Notes string `json:"notes"`
}

type startImportRequest struct {
	Background bool `json:"background"`
}
