package poll

import (
	"log/slog"
	"strings"

	"github.com/mailscrape/weboutlook/internal/config"
	"github.com/mailscrape/weboutlook/internal/matchers"
)

type Deps struct {
	Scraper  FolderScraper
	Folder   string
	Match    *config.MessageMatchers
	Log      *slog.Logger
	Announce func(string)
}

type State struct {
	Known     map[string]bool
	LastCount int
	Seeded    bool
}

// ProcessListing diffs ids against the known set and announces new arrivals.
// The first listing only seeds the known set; messages already present when
// the watch starts are not announced.
func ProcessListing(deps Deps, state *State, ids []string) error {
	deps.Log.Debug("processing folder listing", "folder", deps.Folder, "ids", len(ids), "known", len(state.Known))
	if !state.Seeded {
		state.Known = toSet(ids)
		state.Seeded = true
		deps.Log.Info("watch baseline established", "folder", deps.Folder, "messages", len(ids))
		return nil
	}

	for _, id := range ids {
		if state.Known[id] {
			continue
		}

		matched := true
		if !deps.Match.IsEmpty() {
			var body []byte
			if len(deps.Match.BodyRegex) > 0 {
				fetched, err := deps.Scraper.GetMessage(id)
				if err != nil {
					return err
				}
				body = fetched
			}
			ok, err := matchers.Matches(deps.Match, matchers.Message{Id: id, Body: body})
			if err != nil {
				return err
			}
			matched = ok
		}

		if matched {
			deps.Log.Info("new message", "folder", deps.Folder, "id", id)
			if deps.Announce != nil {
				deps.Announce(id)
			}
		} else {
			deps.Log.Info("new message skipped by matchers", "folder", deps.Folder, "id", id)
		}
	}

	// Ids that left the folder drop out of the known set here, so the set
	// tracks the live listing instead of growing for the life of the watch.
	state.Known = toSet(ids)
	return nil
}

// Refresh fetches the watched folder past the cache and processes the result.
func Refresh(deps Deps, state *State) error {
	ids, err := deps.Scraper.GetFolder(deps.Folder, true)
	if err != nil {
		return err
	}
	if err := ProcessListing(deps, state, ids); err != nil {
		return err
	}
	state.LastCount = len(ids)
	return nil
}

// IsBenignPollError reports whether a poll failure should be retried on the
// next tick rather than aborting the watch.
func IsBenignPollError(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Client.Timeout exceeded") ||
		strings.Contains(msg, "connection reset by peer")
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
