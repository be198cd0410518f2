package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dhenenjay/earth-engine-mcp/internal/artifacts"
	"github.com/Dhenenjay/earth-engine-mcp/internal/degrade"
	"github.com/Dhenenjay/earth-engine-mcp/internal/ee"
	"github.com/Dhenenjay/earth-engine-mcp/internal/logging"
	"github.com/Dhenenjay/earth-engine-mcp/internal/tasks"
)

func (r *Router) handleExport(ctx context.Context, op string, args map[string]any) Response {
	switch op {
	case OpExportToDrive:
		return r.exportToDrive(ctx, args)
	case OpTaskStatus:
		return r.taskStatus(ctx, args)
	case OpThumbnail:
		return r.thumbnail(ctx, args)
	case OpTiles:
		return r.tiles(ctx, args)
	default:
		return fail(fmt.Errorf("%w: %s", ErrUnknownOperation, op))
	}
}

func (r *Router) exportToDrive(ctx context.Context, args map[string]any) Response {
	kind, err := kindArg(args, artifacts.KindComposite)
	if err != nil {
		return fail(err)
	}

	// Exporting a composite supports the same build-from-dates shorthand as
	// the processing operations.
	var (
		input        *artifacts.Record
		fallbackUsed bool
	)
	if kind == artifacts.KindComposite {
		rec, substituted, resp := r.processInput(ctx, args, "input")
		if resp != nil {
			return resp
		}
		input, fallbackUsed = rec, substituted
	} else {
		input, fallbackUsed, err = r.resolveArtifact(args, "input", kind)
		if err != nil {
			return fail(err)
		}
	}

	prefix, err := optStringArg(args, "file_name_prefix", "")
	if err != nil {
		return fail(err)
	}
	if prefix == "" {
		prefix = exportPrefix(input.Key)
	}
	description, err := optStringArg(args, "description", prefix)
	if err != nil {
		return fail(err)
	}
	folder, err := optStringArg(args, "folder", r.cfg.Export.Folder)
	if err != nil {
		return fail(err)
	}
	scale, err := optFloatArg(args, "scale_meters", r.cfg.Export.ScaleMeters)
	if err != nil {
		return fail(err)
	}
	crs, err := optStringArg(args, "crs", r.cfg.Export.CRS)
	if err != nil {
		return fail(err)
	}

	resolved, err := r.regionOrHint(ctx, args, input)
	if err != nil {
		return fail(err)
	}

	taskID, err := r.client.StartExport(ctx, ee.ExportRequest{
		Input:          input.Handle,
		Description:    description,
		Folder:         folder,
		FileNamePrefix: prefix,
		Region:         resolved.Geometry,
		ScaleMeters:    scale,
		CRS:            crs,
		MaxPixels:      r.cfg.Export.MaxPixels,
		FileFormat:     r.cfg.Export.FileFormat,
		CloudOptimized: true,
	})
	if err != nil {
		return fail(fmt.Errorf("export submission failed: %w", err))
	}

	if r.journal != nil {
		jerr := r.journal.Record(taskID, description, map[string]any{
			"input":        input.Key,
			"folder":       folder,
			"prefix":       prefix,
			"scale_meters": scale,
			"crs":          crs,
		})
		if jerr != nil {
			// The backend accepted the export; a journal failure only costs
			// local status history.
			logging.Errorf(logging.CategoryTasks, "failed to journal task %s: %v", taskID, jerr)
		}
	}

	return withFallback(ok(map[string]any{
		"task_id":          taskID,
		"state":            string(ee.TaskStatePending),
		"input":            input.Key,
		"folder":           folder,
		"file_name_prefix": prefix,
		"scale_meters":     scale,
		"crs":              crs,
	}), fallbackUsed, input.Key)
}

func (r *Router) taskStatus(ctx context.Context, args map[string]any) Response {
	id, err := optStringArg(args, "task_id", "")
	if err != nil {
		return fail(err)
	}
	if id == "" {
		return r.recentTasks(args)
	}

	status, err := r.client.TaskStatus(ctx, id)
	if err == nil {
		if r.journal != nil {
			if jerr := r.journal.UpdateState(id, status.State, status.Error); jerr != nil && !errors.Is(jerr, tasks.ErrTaskNotFound) {
				logging.Errorf(logging.CategoryTasks, "failed to record status of task %s: %v", id, jerr)
			}
		}
		return ok(map[string]any{
			"task_id":          status.ID,
			"state":            string(status.State),
			"description":      status.Description,
			"progress":         status.Progress,
			"error":            status.Error,
			"destination_uris": status.DestinationURIs,
		})
	}

	// Backend unreachable or the task aged out: fall back to the journal.
	if r.journal != nil {
		if entry, jerr := r.journal.Get(id); jerr == nil {
			return ok(map[string]any{
				"task_id":     entry.ID,
				"state":       string(entry.State),
				"description": entry.Description,
				"error":       entry.Error,
				"stale":       true,
				"updated_at":  entry.UpdatedAt.Format(time.RFC3339),
			})
		}
	}
	return fail(fmt.Errorf("task status lookup failed: %w", err))
}

// recentTasks answers a bare task_status call with the journal's view of
// recent exports.
func (r *Router) recentTasks(args map[string]any) Response {
	if r.journal == nil {
		return fail(fmt.Errorf("%w: task_id", ErrMissingArgument))
	}
	limit, err := optIntArg(args, "limit", 10, 1, 100)
	if err != nil {
		return fail(err)
	}
	entries, err := r.journal.Recent(limit)
	if err != nil {
		return fail(fmt.Errorf("task listing failed: %w", err))
	}
	return ok(map[string]any{
		"tasks": entries,
		"count": len(entries),
	})
}

func (r *Router) thumbnail(ctx context.Context, args map[string]any) Response {
	kind, err := kindArg(args, artifacts.KindComposite)
	if err != nil {
		return fail(err)
	}
	input, fallbackUsed, err := r.resolveArtifact(args, "input", kind)
	if err != nil {
		return fail(err)
	}

	dimensions, err := optIntArg(args, "dimensions", 512, 1, maxDimensions)
	if err != nil {
		return fail(err)
	}
	spec, err := parseVizSpec(args, input)
	if err != nil {
		return fail(err)
	}

	resolved, err := r.regionOrHint(ctx, args, input)
	if err != nil {
		return fail(err)
	}

	result, err := r.degrader.ProduceVisualization(ctx, input.Handle, spec, resolved.Geometry, dimensions)
	if err != nil {
		var exhausted *degrade.ExhaustedError
		if errors.As(err, &exhausted) {
			return fail(err, map[string]any{
				"attempts":   exhausted.Attempts,
				"suggestion": "try a smaller region or lower dimensions",
			})
		}
		return fail(fmt.Errorf("thumbnail failed: %w", err))
	}

	return withFallback(ok(map[string]any{
		"url":              result.URL,
		"input":            input.Key,
		"final_dimensions": result.FinalDimensions,
		"region_form":      string(result.FinalRegionForm),
		"degraded":         result.Degraded,
		"attempts":         result.Attempts,
	}), fallbackUsed, input.Key)
}

func (r *Router) tiles(ctx context.Context, args map[string]any) Response {
	kind, err := kindArg(args, artifacts.KindComposite)
	if err != nil {
		return fail(err)
	}
	input, fallbackUsed, err := r.resolveArtifact(args, "input", kind)
	if err != nil {
		return fail(err)
	}
	spec, err := parseVizSpec(args, input)
	if err != nil {
		return fail(err)
	}

	template, err := r.client.TileURLTemplate(ctx, input.Handle, spec)
	if err != nil {
		return fail(fmt.Errorf("tile layer failed: %w", err))
	}
	return withFallback(ok(map[string]any{
		"url_template": template,
		"input":        input.Key,
	}), fallbackUsed, input.Key)
}

// exportPrefix derives a Drive-safe file prefix from an artifact key plus a
// short unique suffix so repeated exports never collide.
func exportPrefix(key string) string {
	base := strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
			return c
		}
		return '_'
	}, key)
	return base + "_" + uuid.NewString()[:8]
}
