package pdf

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/a3tai/score-report-reader/internal/descriptions"
)

const (
	directoryCacheSize = 16
	directoryCacheTTL  = 5 * time.Minute
	// directoryScanLimit caps the listing returned with server info.
	directoryScanLimit = 100
	directoryScanTime  = 5 * time.Second
)

// ServerInfo builds the server_info response. Directory listings are
// cached for a few minutes and concurrent scans of the same directory
// share one walk.
type ServerInfo struct {
	service *Service
	cache   *expirable.LRU[string, []FileInfo]
	scans   singleflight.Group
}

// NewServerInfo creates a server info handler for service
func NewServerInfo(service *Service) *ServerInfo {
	return &ServerInfo{
		service: service,
		cache:   expirable.NewLRU[string, []FileInfo](directoryCacheSize, nil, directoryCacheTTL),
	}
}

// Get returns the server information. A directory that cannot be scanned
// yields an empty listing, never an error.
func (p *ServerInfo) Get(ctx context.Context) *ServerInfoResult {
	cfg := p.service.cfg
	dir := p.service.paths.GetConfiguredDirectory()

	return &ServerInfoResult{
		ServerName:        cfg.ServerName,
		Version:           cfg.Version,
		DefaultDirectory:  dir,
		MaxFileSize:       cfg.MaxFileSize,
		MaxFileSizeHuman:  humanize.IBytes(uint64(cfg.MaxFileSize)),
		RowKeyPatterns:    cfg.Parser.RowKeyPatterns,
		AvailableTools:    availableTools(),
		DirectoryContents: p.listing(ctx, dir),
		UsageGuidance:     usageGuidance,
	}
}

func (p *ServerInfo) listing(ctx context.Context, dir string) []FileInfo {
	if files, ok := p.cache.Get(dir); ok {
		return files
	}

	v, _, _ := p.scans.Do(dir, func() (any, error) {
		scanCtx, cancel := context.WithTimeout(ctx, directoryScanTime)
		defer cancel()

		files, err := p.service.search.Find(scanCtx, dir, "", directoryScanLimit)
		if err != nil {
			p.service.logger.Debug("directory scan failed", "directory", dir, "error", err)
			return []FileInfo{}, nil
		}
		if files == nil {
			files = []FileInfo{}
		}
		p.cache.Add(dir, files)
		return files, nil
	})
	return v.([]FileInfo)
}

// invalidate drops the cached listing of dir.
func (p *ServerInfo) invalidate(dir string) {
	p.cache.Remove(dir)
}

func availableTools() []ToolInfo {
	params := map[string]string{
		"score_report_analyze": "files (optional): report paths; directory (optional): analyze every report under it " +
			"(uses the default directory when both are empty); proficiency, min_lexile, max_lexile (optional): " +
			"summary filter; rows (optional): include per-row outcomes",
		"score_report_inspect":     "path (required): report path; page (optional): page number, default 1",
		"score_report_list":        "directory (optional): directory to search; query (optional): fuzzy filename match; validate (optional): check every file",
		"score_report_validate":    "path (required): report path",
		"score_report_server_info": "No parameters required",
	}
	names := descriptions.GetAllToolNames()
	tools := make([]ToolInfo, 0, len(names))
	for _, name := range names {
		tools = append(tools, ToolInfo{
			Name:        name,
			Description: descriptions.GetToolDescription(name),
			Parameters:  params[name],
		})
	}
	return tools
}

const usageGuidance = `Score report reader guidance:

1. Start with score_report_list to find report files, or analyze the default directory directly.
2. score_report_analyze returns per-student tallies, a per-standard summary and diagnostics.
3. Unknown marks are counted separately and never enter success rates.
4. When results look wrong, score_report_inspect shows rows, the outcome column and every mark candidate for one page.
5. score_report_validate tells a corrupted, encrypted or non-PDF file apart from one without row identifiers.

Paths may be absolute or relative to the default directory, and must stay inside it.`
