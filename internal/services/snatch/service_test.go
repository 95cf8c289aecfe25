// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package snatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedbridge/seedbridge/internal/domain"
	"github.com/seedbridge/seedbridge/internal/gazelle"
	"github.com/seedbridge/seedbridge/internal/prompt"
	"github.com/seedbridge/seedbridge/internal/shard"
	"github.com/seedbridge/seedbridge/internal/slskd"
)

type fakeTracker struct {
	browse map[string]*gazelle.BrowseResult
	groups map[int]*gazelle.GroupDetails
}

func (f *fakeTracker) Browse(_ context.Context, searchstr string, page int) (*gazelle.BrowseResult, error) {
	if r, ok := f.browse[searchstr]; ok && page == 1 {
		return r, nil
	}
	return &gazelle.BrowseResult{CurrentPage: page, Pages: 1}, nil
}

func (f *fakeTracker) GroupDetails(_ context.Context, groupID int) (*gazelle.GroupDetails, error) {
	return f.groups[groupID], nil
}

type fakePeers struct {
	responses map[string][]slskd.Response
	limited   bool
	searched  []string
	enqueued  map[string][]slskd.File
}

func (f *fakePeers) Search(_ context.Context, text string) ([]slskd.Response, bool, error) {
	f.searched = append(f.searched, text)
	return f.responses[text], f.limited, nil
}

func (f *fakePeers) Enqueue(_ context.Context, username string, files []slskd.File) error {
	if f.enqueued == nil {
		f.enqueued = make(map[string][]slskd.File)
	}
	f.enqueued[username] = append(f.enqueued[username], files...)
	return nil
}

type fakeChecker struct {
	have map[string]bool
}

func (f *fakeChecker) HasTorrentHash(_ context.Context, hash string) (bool, error) {
	return f.have[hash], nil
}

func testConfig(t *testing.T) *domain.Config {
	t.Helper()

	return &domain.Config{
		StagingDir:       t.TempDir(),
		CheckInfohash:    true,
		AllowedFormats:   []string{"FLAC"},
		AllowedEncodings: []string{"Lossless"},
		Tracker:          domain.TrackerConfig{MaxPages: 3},
		Matching: domain.MatchingConfig{
			AcceptThreshold: 0.8,
			AmbiguityMargin: 0.1,
			FloorScore:      0.3,
			MaxNameDistance: 0.4,
		},
	}
}

func membraneAlbum() domain.AlbumQuery {
	return domain.AlbumQuery{Album: "Master of Membranes", Artist: "Organica", Year: 1896}
}

func membraneTracker() *fakeTracker {
	return &fakeTracker{
		browse: map[string]*gazelle.BrowseResult{
			"Organica Master of Membranes": {
				CurrentPage: 1,
				Pages:       1,
				Results: []gazelle.SearchResult{{
					GroupID:   7,
					GroupName: "Master of Membranes",
					Artist:    "Organica",
					GroupYear: 1896,
				}},
			},
		},
		groups: map[int]*gazelle.GroupDetails{
			7: {
				Torrents: []gazelle.TorrentDetails{
					{
						ID:       42,
						GroupID:  7,
						Format:   "FLAC",
						Encoding: "Lossless",
						InfoHash: "abc123",
						FilePath: "Organica - Master of Membranes (1896) [FLAC]",
						FileList: "01 Mitochondria.flac{{{100}}}|||02 Organelle.flac{{{200}}}",
					},
					// MP3 variant fails the format allow-list.
					{ID: 43, GroupID: 7, Format: "MP3", Encoding: "320", FileList: "01 a.mp3{{{50}}}"},
				},
			},
		},
	}
}

func membraneResponses(files ...slskd.File) map[string][]slskd.Response {
	return map[string][]slskd.Response{
		`"organica" "master of membranes" 1896`: {{
			Username:          "cellwall",
			HasFreeUploadSlot: true,
			UploadSpeed:       1000,
			Files:             files,
		}},
	}
}

func TestRunStagesCleanMatch(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	peers := &fakePeers{responses: membraneResponses(
		slskd.File{Filename: `share\flac\membranes\01 Mitochondria.flac`, Size: 100},
		slskd.File{Filename: `share\flac\membranes\02 Organelle.flac`, Size: 200},
	)}

	svc := NewService(cfg, membraneTracker(), peers, &fakeChecker{}, &prompt.Scripted{Fallback: true})

	summary, err := svc.Run(context.Background(), []domain.AlbumQuery{membraneAlbum()})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Matched)
	assert.Zero(t, summary.Failed)

	// Shard lands under the peer's folder name, where the daemon delivers,
	// and remembers the tracker's folder name for reconciliation.
	s, err := shard.Read(filepath.Join(cfg.StagingDir, "membranes"))
	require.NoError(t, err)
	assert.Equal(t, 42, s.TorrentID)
	assert.Equal(t, "Organica - Master of Membranes (1896) [FLAC]", s.ReferenceFolder)
	assert.Len(t, s.Files, 2)

	// The peer's exact share paths were enqueued.
	require.Len(t, peers.enqueued["cellwall"], 2)
	assert.Equal(t, `share\flac\membranes\01 Mitochondria.flac`, peers.enqueued["cellwall"][0].Filename)
}

func TestRunNoTrackerMatch(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	svc := NewService(cfg, &fakeTracker{}, &fakePeers{}, nil, &prompt.Scripted{Fallback: true})

	summary, err := svc.Run(context.Background(), []domain.AlbumQuery{membraneAlbum()})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.NoTrackerMatch)
	assert.Zero(t, summary.Matched)
}

func TestRunNoPeerMatch(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	peers := &fakePeers{responses: map[string][]slskd.Response{}}
	svc := NewService(cfg, membraneTracker(), peers, &fakeChecker{}, &prompt.Scripted{Fallback: true})

	summary, err := svc.Run(context.Background(), []domain.AlbumQuery{membraneAlbum()})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.NoPeerMatch)
	assert.Empty(t, peers.enqueued)
}

func TestRunSkipsTorrentAlreadyInClient(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	peers := &fakePeers{responses: membraneResponses(
		slskd.File{Filename: `share\01 Mitochondria.flac`, Size: 100},
		slskd.File{Filename: `share\02 Organelle.flac`, Size: 200},
	)}
	checker := &fakeChecker{have: map[string]bool{"abc123": true}}

	svc := NewService(cfg, membraneTracker(), peers, checker, &prompt.Scripted{Fallback: true})

	summary, err := svc.Run(context.Background(), []domain.AlbumQuery{membraneAlbum()})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.AlreadyHave)
	assert.Empty(t, peers.enqueued, "nothing is enqueued for a torrent the client already has")
}

func TestRunSkipsAlreadyStagedShard(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	staged := filepath.Join(cfg.StagingDir, "Organica - Master of Membranes (1896) [FLAC]")
	require.NoError(t, os.MkdirAll(staged, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(staged, shard.FileBasename),
		[]byte("root: x\ntorrent_id: 42\nfiles: [{original_name: a, original_size: 1}]\n"), 0o644))

	peers := &fakePeers{responses: membraneResponses(
		slskd.File{Filename: `share\01 Mitochondria.flac`, Size: 100},
		slskd.File{Filename: `share\02 Organelle.flac`, Size: 200},
	)}

	svc := NewService(cfg, membraneTracker(), peers, &fakeChecker{}, &prompt.Scripted{Fallback: true})

	summary, err := svc.Run(context.Background(), []domain.AlbumQuery{membraneAlbum()})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.AlreadyHave)
	assert.Empty(t, peers.enqueued)
}

func TestRunDeclinedByUser(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	// Partial candidate scores 0.5: above floor, below threshold, prompted.
	peers := &fakePeers{responses: membraneResponses(
		slskd.File{Filename: `share\01 Mitochondria.flac`, Size: 100},
	)}

	// First answer accepts the album search, then the match prompt is declined.
	svc := NewService(cfg, membraneTracker(), peers, &fakeChecker{}, &prompt.Scripted{Answers: []bool{true}})

	summary, err := svc.Run(context.Background(), []domain.AlbumQuery{membraneAlbum()})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.NoPeerMatch)
	assert.Empty(t, peers.enqueued)
}

func TestRunSearchDeclined(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	peers := &fakePeers{responses: membraneResponses(
		slskd.File{Filename: `share\01 Mitochondria.flac`, Size: 100},
		slskd.File{Filename: `share\02 Organelle.flac`, Size: 200},
	)}

	p := &prompt.Scripted{Answers: []bool{false}}
	svc := NewService(cfg, membraneTracker(), peers, &fakeChecker{}, p)

	summary, err := svc.Run(context.Background(), []domain.AlbumQuery{membraneAlbum()})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.NoPeerMatch)
	assert.Empty(t, peers.searched, "declining the search skips the album entirely")
	require.NotEmpty(t, p.Asked)
	assert.True(t, p.Asked[0].Routine, "the search confirmation only surfaces in timid mode")
	assert.True(t, p.Asked[0].Default)
}

func TestRunOffersFolderFallbackWhenLimitReached(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	require.False(t, cfg.SearchFolderNames)

	// The album queries drown in the response limit; only the folder-name
	// query, offered interactively, finds the share.
	peers := &fakePeers{
		limited: true,
		responses: map[string][]slskd.Response{
			"organica master of membranes 1896 flac": {{
				Username:          "cellwall",
				HasFreeUploadSlot: true,
				Files: []slskd.File{
					{Filename: `share\01 Mitochondria.flac`, Size: 100},
					{Filename: `share\02 Organelle.flac`, Size: 200},
				},
			}},
		},
	}

	p := &prompt.Scripted{Fallback: true}
	svc := NewService(cfg, membraneTracker(), peers, &fakeChecker{}, p)

	summary, err := svc.Run(context.Background(), []domain.AlbumQuery{membraneAlbum()})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Matched)
	assert.Contains(t, peers.searched, "organica master of membranes 1896 flac")

	var offered *prompt.Question
	for i := range p.Asked {
		if !p.Asked[i].Routine {
			offered = &p.Asked[i]
			break
		}
	}
	require.NotNil(t, offered, "the fallback offer always reaches the user")
	assert.Contains(t, offered.Message, "folder names")
}

func TestRunNoFallbackOfferWithoutLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	peers := &fakePeers{responses: map[string][]slskd.Response{}}

	p := &prompt.Scripted{Fallback: true}
	svc := NewService(cfg, membraneTracker(), peers, &fakeChecker{}, p)

	summary, err := svc.Run(context.Background(), []domain.AlbumQuery{membraneAlbum()})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.NoPeerMatch)
	for _, q := range p.Asked {
		assert.True(t, q.Routine, "an unlimited empty search ends the album quietly")
	}
}

func TestRunFolderNameFallbackSearch(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.SearchFolderNames = true

	// Album queries find nothing; the folder-name query finds the share.
	peers := &fakePeers{responses: map[string][]slskd.Response{
		"organica master of membranes 1896 flac": {{
			Username:          "cellwall",
			HasFreeUploadSlot: true,
			Files: []slskd.File{
				{Filename: `share\01 Mitochondria.flac`, Size: 100},
				{Filename: `share\02 Organelle.flac`, Size: 200},
			},
		}},
	}}

	svc := NewService(cfg, membraneTracker(), peers, &fakeChecker{}, &prompt.Scripted{Fallback: true})

	summary, err := svc.Run(context.Background(), []domain.AlbumQuery{membraneAlbum()})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Matched)
	assert.Contains(t, peers.searched, "organica master of membranes 1896 flac")
}
