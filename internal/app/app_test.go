package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/reelshelf/internal/catalog"
	"github.com/blackwell-systems/reelshelf/internal/config"
)

// sqliteEnv points the store at a fresh sqlite file and returns a config
// path that does not exist yet.
func sqliteEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("REELSHELF_STORE_BACKEND", "sqlite")
	t.Setenv("REELSHELF_STORE_SQLITE_PATH", filepath.Join(dir, "reelshelf.db"))
	t.Setenv("REELSHELF_STORE_CACHE_SIZE", "0")
	t.Setenv("REELSHELF_LOG_LEVEL", "error")
	return filepath.Join(dir, "config.yml")
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", cfgPath, "--no-color", "--no-interactive"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("invalid JSON %q: %v", s, err)
	}
	return m
}

func TestAppendAndChannels(t *testing.T) {
	cfgPath := sqliteEnv(t)

	for _, title := range []string{"Pilot", "Second Episode"} {
		out, err := run(t, cfgPath, "append", "--channel", "Comedy Hits", "--title", title, "--json")
		if err != nil {
			t.Fatalf("append %q: %v", title, err)
		}
		if got := decode(t, out)["jsonFile"]; got != "channels/comedy-hits/videos-1.json" {
			t.Errorf("jsonFile = %v", got)
		}
	}

	out, err := run(t, cfgPath, "channels", "--json")
	if err != nil {
		t.Fatalf("channels: %v", err)
	}
	doc := decode(t, out)
	if doc["totalVideos"] != float64(2) {
		t.Errorf("totalVideos = %v, want 2", doc["totalVideos"])
	}
	channels := doc["channels"].([]any)
	if len(channels) != 1 {
		t.Fatalf("channels = %d, want 1", len(channels))
	}
	latest := channels[0].(map[string]any)["latestVideo"].(map[string]any)
	if latest["title"] != "Second Episode" {
		t.Errorf("latest = %v", latest["title"])
	}

	out, err = run(t, cfgPath, "channels", "--rebuild", "--json")
	if err != nil {
		t.Fatalf("channels --rebuild: %v", err)
	}
	if decode(t, out)["totalVideos"] != float64(2) {
		t.Error("rebuild changed the total")
	}
}

func TestAppend_RequestIDIsIdempotent(t *testing.T) {
	cfgPath := sqliteEnv(t)
	args := []string{"append", "--channel", "shorts", "--title", "Quick One", "--request-id", "req-7", "--json"}

	if _, err := run(t, cfgPath, args...); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, cfgPath, args...)
	if err != nil {
		t.Fatal(err)
	}
	res := decode(t, out)
	if res["duplicate"] != true {
		t.Error("second delivery should be reported as duplicate")
	}
	if res["videoCount"] != float64(1) {
		t.Errorf("videoCount = %v, want 1", res["videoCount"])
	}
}

func TestAppend_RequiresChannelAndTitle(t *testing.T) {
	cfgPath := sqliteEnv(t)
	if _, err := run(t, cfgPath, "append", "--title", "x"); err == nil {
		t.Error("expected an error without --channel")
	}
	_, err := run(t, cfgPath, "append", "--channel", "shorts")
	var verr *catalog.ValidationError
	if err == nil || !errors.As(err, &verr) {
		t.Errorf("expected a validation error, got %v", err)
	}
}

func TestAppendPageShowAndSitemap(t *testing.T) {
	cfgPath := sqliteEnv(t)
	t.Setenv("REELSHELF_SERVER_BASE_URL", "https://reels.example")

	_, err := run(t, cfgPath, "append", "--channel", "trailers", "--page",
		"--title", "Deep Water", "--category", "Drama", "--year", "2021",
		"--video-url", "https://cdn.example/deep-water.mp4", "--tags", "ocean,survival")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	out, err := run(t, cfgPath, "show", "drama/deep-water", "--raw")
	if err != nil {
		t.Fatalf("show --raw: %v", err)
	}
	for _, want := range []string{"title: Deep Water", "releaseYear: 2021", "survival"} {
		if !strings.Contains(out, want) {
			t.Errorf("page source missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, cfgPath, "show", "drama/deep-water")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "Deep Water") {
		t.Errorf("rendered record missing title:\n%s", out)
	}

	if _, err := run(t, cfgPath, "show", "deep-water"); err == nil {
		t.Error("expected an error for a path without category")
	}

	dir := filepath.Join(t.TempDir(), "public")
	if _, err := run(t, cfgPath, "sitemap", "--out", dir); err != nil {
		t.Fatalf("sitemap: %v", err)
	}
	for _, name := range []string{"sitemap.xml", "sitemap-1.xml", "sitemap-categories.xml", "robots.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, "sitemap-1.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "https://reels.example/drama/deep-water") {
		t.Errorf("sitemap-1.xml missing record URL:\n%s", data)
	}
}

func TestAppendPage_InvalidRecordWarns(t *testing.T) {
	cfgPath := sqliteEnv(t)
	cmd := NewRootCmd()
	var stderr bytes.Buffer
	cmd.SetOut(io.Discard)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--config", cfgPath, "--no-color", "--no-interactive",
		"append", "--channel", "trailers", "--page", "--title", "No Video"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("append: %v", err)
	}
	msg := stderr.String()
	if !strings.Contains(msg, `page for "No Video" not created`) || !strings.Contains(msg, "videoUrl") {
		t.Errorf("warning = %q", msg)
	}
}

func TestCategories(t *testing.T) {
	cfgPath := sqliteEnv(t)

	out, err := run(t, cfgPath, "categories", "add", "Drama", "sci-fi", "drama", "--json")
	if err != nil {
		t.Fatalf("categories add: %v", err)
	}
	got := decode(t, out)["categories"].([]any)
	if len(got) != 2 || got[0] != "drama" || got[1] != "sci-fi" {
		t.Errorf("categories = %v", got)
	}

	out, err = run(t, cfgPath, "categories")
	if err != nil {
		t.Fatal(err)
	}
	if out != "drama\nsci-fi\n" {
		t.Errorf("output = %q", out)
	}
}

func TestStoreNotConfigured(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yml")
	t.Setenv("REELSHELF_STORE_BACKEND", "github")
	t.Setenv("REELSHELF_GITHUB_OWNER", "")
	t.Setenv("REELSHELF_GITHUB_REPO", "")

	_, err := run(t, cfgPath, "channels", "--json")
	if err == nil {
		t.Fatal("expected a configuration error")
	}
	var cerr *config.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("error %v is not a *config.ConfigError", err)
	}
	if !strings.Contains(err.Error(), "REELSHELF_GITHUB_OWNER") {
		t.Errorf("error should name the missing variable: %v", err)
	}
}

func TestConfigInit(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "cfg", "config.yml")

	if _, err := run(t, cfgPath, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(cfgPath); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, err := run(t, cfgPath, "config", "init"); err == nil {
		t.Error("expected an error when the file exists")
	}
	if _, err := run(t, cfgPath, "config", "init", "--force"); err != nil {
		t.Errorf("config init --force: %v", err)
	}

	out, err := run(t, cfgPath, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "backend: github") {
		t.Errorf("config show missing store backend:\n%s", out)
	}
}

func TestConfigInit_BrokenFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(cfgPath, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, cfgPath, "channels"); err == nil {
		t.Error("expected a load error")
	}
	if _, err := run(t, cfgPath, "config", "init", "--force"); err != nil {
		t.Errorf("config init should repair a broken file: %v", err)
	}
}

func TestVersion(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { appVersion = "dev" })
	out, err := run(t, filepath.Join(t.TempDir(), "none.yml"), "version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "reelshelf 1.2.3\n" {
		t.Errorf("version output = %q", out)
	}
}

func TestRecordMarkdown(t *testing.T) {
	md := recordMarkdown(catalog.Record{
		Title:       "Deep Water",
		ReleaseYear: 2021,
		Category:    "drama",
		Tags:        []string{"ocean", "survival"},
		Description: "Two divers.",
		Body:        "Long form notes.",
	})
	for _, want := range []string{"# Deep Water (2021)", "- **Category:** drama", "- **Tags:** ocean, survival", "Two divers.", "Long form notes."} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "Director") {
		t.Error("empty fields should be left out")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	log.Info("hidden")
	log.Warn("shown", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	entry := decode(t, lines[0])
	if entry["msg"] != "shown" || entry["k"] != "v" {
		t.Errorf("entry = %v", entry)
	}
}

func TestCompleteRecordPaths(t *testing.T) {
	cfgPath := sqliteEnv(t)
	if _, err := run(t, cfgPath, "append", "--channel", "trailers", "--page",
		"--title", "Deep Water", "--category", "drama", "--video-url", "https://cdn.example/dw.mp4"); err != nil {
		t.Fatalf("append: %v", err)
	}

	complete := completeRecordPaths(&state{flagConfig: cfgPath})
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	got, dir := complete(cmd, nil, "d")
	if len(got) != 1 || got[0] != "drama/" {
		t.Errorf("categories = %v", got)
	}
	if dir&cobra.ShellCompDirectiveNoSpace == 0 {
		t.Error("category completion should not add a space")
	}

	got, _ = complete(cmd, nil, "drama/")
	if len(got) != 1 || got[0] != "drama/deep-water\tDeep Water" {
		t.Errorf("slugs = %v", got)
	}

	if got, _ := complete(cmd, []string{"drama/deep-water"}, ""); len(got) != 0 {
		t.Errorf("second argument completed to %v", got)
	}
}
