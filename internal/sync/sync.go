package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/gitsource"
	"github.com/conorfennell/knolstudy/internal/knol"
	"github.com/conorfennell/knolstudy/internal/parser"
	"github.com/conorfennell/knolstudy/internal/storage"
)

const (
	SourceLocal = "local"
	SourceGit   = "git"
)

// Options configures a sync run. Zero values fall back to defaults.
type Options struct {
	ReposDir string                                                 // defaults to "repos"
	Now      func() time.Time                                       // defaults to time.Now
	GitSync  func(ctx context.Context, url, localPath string) error // defaults to gitsource.Sync
}

func (o Options) withDefaults() Options {
	if o.ReposDir == "" {
		o.ReposDir = "repos"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.GitSync == nil {
		o.GitSync = func(ctx context.Context, url, localPath string) error {
			return gitsource.Sync(ctx, url, localPath, nil)
		}
	}
	return o
}

// Report counts what a sync run did.
type Report struct {
	Sources  int
	Items    int
	Inserted int
	Deleted  int
	Errors   []error
}

func (r *Report) add(o Report) {
	r.Items += o.Items
	r.Inserted += o.Inserted
	r.Deleted += o.Deleted
	r.Errors = append(r.Errors, o.Errors...)
}

// SourceType guesses whether path is a git remote or a local directory.
func SourceType(path string) string {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") || strings.HasPrefix(path, "https://") {
		return SourceGit
	}
	return SourceLocal
}

// AddSource registers a source unless it is already known and returns its ID.
func AddSource(db *storage.DB, path string) (int64, error) {
	existing, err := db.FindSourceByPath(path)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}
	return db.InsertSource(path, SourceType(path))
}

// RunSync iterates over all sources and reconciles them. Problems with a
// single source are logged and collected in the report; only failures that
// stop the whole run are returned as an error.
func RunSync(ctx context.Context, db *storage.DB, opts Options) (Report, error) {
	opts = opts.withDefaults()
	var report Report

	slog.Info("Starting sync process for all sources...")
	sources, err := db.GetAllSources()
	if err != nil {
		return report, fmt.Errorf("failed to get sources: %w", err)
	}

	if len(sources) == 0 {
		slog.Info("No sources configured. Add one with --add-source <path/or/url.git>")
		return report, nil
	}

	if err := os.MkdirAll(opts.ReposDir, os.ModePerm); err != nil {
		return report, fmt.Errorf("failed to create repos directory: %w", err)
	}

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		slog.Info("Syncing source", "id", source.ID, "type", source.Type, "path", source.Path)
		report.Sources++

		root := source.Path
		if source.Type == SourceGit {
			localRepoPath, err := gitURLToLocalPath(opts.ReposDir, source.Path)
			if err != nil {
				slog.Error("Error determining local path for git repo", "url", source.Path, "error", err)
				report.Errors = append(report.Errors, err)
				continue
			}

			if err := opts.GitSync(ctx, source.Path, localRepoPath); err != nil {
				slog.Error("Error syncing git repo", "url", source.Path, "error", err)
				report.Errors = append(report.Errors, err)
				continue
			}
			root = localRepoPath
		}

		report.add(reconcileSource(db, source, root, opts.Now()))
	}

	slog.Info("Sync process complete.",
		"sources", report.Sources,
		"items", report.Items,
		"inserted", report.Inserted,
		"deleted", report.Deleted,
		"errors", len(report.Errors),
	)
	return report, nil
}

// reconcileSource makes the stored deck content of a source match the
// markdown files under root. Schedules of cards that still exist are kept.
func reconcileSource(db *storage.DB, source storage.Source, root string, now time.Time) Report {
	var report Report
	foundItems := make(map[string]bool)
	foundCards := make(map[string]bool)
	foundQuestions := make(map[string]bool)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		item := domain.Item{
			ID:        knol.ItemID(source.ID, rel),
			SourceID:  source.ID,
			Title:     strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			Path:      filepath.ToSlash(rel),
			CreatedAt: now,
		}

		deck, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
		}
		if len(deck.Flashcards) == 0 && len(deck.Questions) == 0 {
			if parseErr != nil {
				// The file is still there but unreadable; leave what we have.
				if err := keepExisting(db, item.ID, foundItems, foundCards, foundQuestions); err != nil {
					report.Errors = append(report.Errors, err)
				}
			}
			return nil
		}

		if err := db.UpsertItem(item); err != nil {
			report.Errors = append(report.Errors, err)
			return nil
		}
		foundItems[item.ID] = true
		report.Items++

		for _, parsed := range deck.Flashcards {
			id := knol.CardID(item.ID, parsed)
			foundCards[id] = true
			inserted, err := insertCardIfNew(db, domain.NewFlashcard(id, item.ID, parsed.Front, parsed.Back, parsed.Context, now))
			if err != nil {
				report.Errors = append(report.Errors, err)
			}
			if inserted {
				report.Inserted++
			}
		}

		for _, q := range deck.Questions {
			q.ItemID = item.ID
			q.ID = knol.QuestionID(item.ID, q)
			foundQuestions[q.ID] = true
			inserted, err := insertQuestionIfNew(db, q)
			if err != nil {
				report.Errors = append(report.Errors, err)
			}
			if inserted {
				report.Inserted++
			}
		}
		return nil
	})

	if walkErr != nil {
		slog.Error("Error walking directory", "path", root, "error", walkErr)
		report.Errors = append(report.Errors, walkErr)
		return report
	}

	report.Deleted += deleteOrphans(db.GetFlashcardIDsBySourceID, db.DeleteFlashcard, source.ID, foundCards, &report)
	report.Deleted += deleteOrphans(db.GetMCQIDsBySourceID, db.DeleteMCQ, source.ID, foundQuestions, &report)

	items, err := db.GetItemsBySourceID(source.ID)
	if err != nil {
		report.Errors = append(report.Errors, err)
	}
	for _, it := range items {
		if !foundItems[it.ID] {
			slog.Info("Orphaned item, deleting", "item", it.ID, "path", it.Path)
			if err := db.DeleteItem(it.ID); err != nil {
				slog.Warn("Failed to delete orphaned item", "item", it.ID, "error", err)
			}
		}
	}

	if err := db.UpdateSourceLastScanned(source.ID, now); err != nil {
		slog.Warn("Failed to update last scanned for source", "source_id", source.ID, "error", err)
	}

	slog.Info("reconciliation complete",
		"path", root,
		"items", report.Items,
		"inserted", report.Inserted,
		"orphaned_deleted", report.Deleted,
		"errors", len(report.Errors),
	)
	return report
}

// keepExisting marks an item and everything stored under it as found so
// the orphan sweep leaves it alone.
func keepExisting(db *storage.DB, itemID string, items, cards, questions map[string]bool) error {
	items[itemID] = true
	stored, err := db.GetFlashcards(itemID)
	if err != nil {
		return err
	}
	for _, c := range stored {
		cards[c.ID] = true
	}
	mcqs, err := db.GetMCQs(itemID)
	if err != nil {
		return err
	}
	for _, q := range mcqs {
		questions[q.ID] = true
	}
	return nil
}

func insertCardIfNew(db *storage.DB, card domain.Flashcard) (bool, error) {
	if err := domain.Validate(card); err != nil {
		return false, fmt.Errorf("flashcard %s: %w", card.ID, err)
	}
	existing, err := db.FindFlashcard(card.ID)
	if err != nil {
		return false, fmt.Errorf("db check for %s: %w", card.ID, err)
	}
	if existing != nil {
		return false, nil
	}
	slog.Debug("New card found, inserting...", "id", card.ID)
	if err := db.InsertFlashcard(card, storage.OriginDeck); err != nil {
		return false, fmt.Errorf("db insert for %s: %w", card.ID, err)
	}
	return true, nil
}

func insertQuestionIfNew(db *storage.DB, q domain.MCQ) (bool, error) {
	if err := domain.Validate(q); err != nil {
		return false, fmt.Errorf("question %s: %w", q.ID, err)
	}
	existing, err := db.FindMCQ(q.ID)
	if err != nil {
		return false, fmt.Errorf("db check for %s: %w", q.ID, err)
	}
	if existing != nil {
		return false, nil
	}
	slog.Debug("New question found, inserting...", "id", q.ID)
	if err := db.InsertMCQ(q, storage.OriginDeck); err != nil {
		return false, fmt.Errorf("db insert for %s: %w", q.ID, err)
	}
	return true, nil
}

func deleteOrphans(
	list func(int64, storage.Origin) ([]string, error),
	remove func(string) error,
	sourceID int64,
	found map[string]bool,
	report *Report,
) int {
	ids, err := list(sourceID, storage.OriginDeck)
	if err != nil {
		report.Errors = append(report.Errors, err)
		return 0
	}
	var deleted int
	for _, id := range ids {
		if found[id] {
			continue
		}
		slog.Info("Orphaned content, deleting", "id", id)
		if err := remove(id); err != nil {
			slog.Warn("Failed to delete orphaned content", "id", id, "error", err)
			continue
		}
		deleted++
	}
	return deleted
}

// gitURLToLocalPath maps a remote to <baseDir>/<host>/<path>. Remotes that
// would resolve outside their host directory are rejected.
func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	host, repoPath, err := splitGitURL(repoURL)
	if err != nil {
		return "", err
	}
	if host == "" || host == "." || host == ".." || strings.ContainsAny(host, `/\`) {
		return "", fmt.Errorf("git URL has an invalid host: %s", repoURL)
	}

	hostDir := filepath.Join(baseDir, host)
	localPath := filepath.Join(hostDir, strings.TrimSuffix(repoPath, ".git"))
	rel, err := filepath.Rel(hostDir, localPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("git URL has no usable repository path: " + repoURL)
	}
	return localPath, nil
}

// splitGitURL accepts http(s) URLs and scp-style user@host:path remotes.
func splitGitURL(repoURL string) (host, repoPath string, err error) {
	parsedURL, err := url.Parse(repoURL)
	if err == nil && (parsedURL.Scheme == "https" || parsedURL.Scheme == "http") {
		return parsedURL.Host, parsedURL.Path, nil
	}
	if strings.Contains(repoURL, "@") {
		parts := strings.Split(repoURL, ":")
		if len(parts) == 2 {
			hostAndUser := strings.Split(parts[0], "@")
			if len(hostAndUser) == 2 {
				return hostAndUser[1], parts[1], nil
			}
		}
	}
	return "", "", fmt.Errorf("could not parse git URL: %s", repoURL)
}
