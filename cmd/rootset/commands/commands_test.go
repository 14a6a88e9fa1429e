// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/rootset/cmd/rootset/cli"
	"github.com/bureau-foundation/rootset/lib/config"
	"github.com/bureau-foundation/rootset/lib/persistindex"
	"github.com/bureau-foundation/rootset/lib/testutil"
)

type result struct {
	stdout string
	stderr string
	err    error
}

// isolate points HOME at a temporary directory and clears the
// environment variables the commands read.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvConfig, "")
	t.Setenv(persistindex.DisableEnv, "")
}

func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	stdio := Stdio{In: strings.NewReader(stdin), Out: &stdout, Err: &stderr}
	err := Root(stdio).Execute(args)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// fixture writes two directory roots: dirA{Foo, shared} and
// dirB{Bar, shared}.
func fixture(t *testing.T) (dirA, dirB string) {
	t.Helper()
	base := t.TempDir()
	dirA = filepath.Join(base, "a")
	dirB = filepath.Join(base, "b")
	testutil.WriteTree(t, dirA, map[string]string{
		"com/example/Foo.class": "foo from a",
		"shared.txt":            "shared from a",
	})
	testutil.WriteTree(t, dirB, map[string]string{
		"com/example/Bar.class": "bar from b",
		"shared.txt":            "shared from b",
	})
	return dirA, dirB
}

func origin(t *testing.T, kind, location string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(location)
	if err != nil {
		t.Fatalf("EvalSymlinks(%s): %v", location, err)
	}
	return kind + ":" + resolved
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rootset.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestResolve(t *testing.T) {
	isolate(t)
	dirA, dirB := fixture(t)

	got := execute(t, "", "resolve", "--root", dirA, "--root", dirB,
		"com/example/Foo.class", "com/example/Bar.class", "shared.txt")
	if got.err != nil {
		t.Fatalf("resolve failed: %v\nstderr: %s", got.err, got.stderr)
	}

	want := strings.Join([]string{
		"com/example/Foo.class\t" + origin(t, "dir", dirA),
		"com/example/Bar.class\t" + origin(t, "dir", dirB),
		"shared.txt\t" + origin(t, "dir", dirA),
	}, "\n") + "\n"
	if got.stdout != want {
		t.Errorf("stdout = %q, want %q", got.stdout, want)
	}
}

func TestResolve_NotFoundExitsOne(t *testing.T) {
	isolate(t)
	dirA, dirB := fixture(t)

	got := execute(t, "", "resolve", "--root", dirA, "--root", dirB, "com/example/Baz.class")
	var exit *cli.ExitError
	if !errors.As(got.err, &exit) || exit.Code != 1 {
		t.Fatalf("err = %v, want ExitError{1}", got.err)
	}
	if !strings.Contains(got.stderr, "com/example/Baz.class: not found") {
		t.Errorf("stderr = %q, want a not found line", got.stderr)
	}
	if got.stdout != "" {
		t.Errorf("stdout = %q, want empty", got.stdout)
	}
}

func TestResolve_AllJSON(t *testing.T) {
	isolate(t)
	dirA, dirB := fixture(t)

	got := execute(t, "", "resolve", "--root", dirA, "--root", dirB, "--all", "--json", "shared.txt")
	if got.err != nil {
		t.Fatalf("resolve failed: %v", got.err)
	}

	var results []resolution
	if err := json.Unmarshal([]byte(got.stdout), &results); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, got.stdout)
	}
	if len(results) != 1 || !results[0].Found || len(results[0].Matches) != 2 {
		t.Fatalf("results = %+v, want one name with two matches", results)
	}
	for i, location := range []string{dirA, dirB} {
		m := results[0].Matches[i]
		if m.Ordinal != i || m.Kind != "dir" || m.Origin != origin(t, "dir", location) {
			t.Errorf("match %d = %+v", i, m)
		}
	}
}

func TestResolve_InvalidName(t *testing.T) {
	isolate(t)
	dirA, _ := fixture(t)

	got := execute(t, "", "resolve", "--root", dirA, "../escape")
	if got.err == nil {
		t.Fatal("expected an error for an invalid name")
	}

	got = execute(t, "", "resolve", "--root", dirA)
	if got.err == nil || !strings.Contains(got.err.Error(), "name is required") {
		t.Errorf("err = %v, want a missing name error", got.err)
	}
}

func TestResolve_Bootstrap(t *testing.T) {
	isolate(t)
	dirA, _ := fixture(t)
	bootstrap := t.TempDir()
	testutil.WriteTree(t, bootstrap, map[string]string{
		"java/lang/Object.class": "object",
		"com/example/Foo.class":  "bootstrap foo",
	})

	got := execute(t, "", "resolve", "--root", dirA, "--bootstrap", bootstrap,
		"java/lang/Object.class", "com/example/Foo.class")
	if got.err != nil {
		t.Fatalf("resolve failed: %v", got.err)
	}
	if !strings.Contains(got.stdout, "java/lang/Object.class\tbootstrap\n") {
		t.Errorf("stdout = %q, want Object from bootstrap", got.stdout)
	}
	if !strings.Contains(got.stdout, "com/example/Foo.class\t"+origin(t, "dir", dirA)) {
		t.Errorf("stdout = %q, want Foo from the root", got.stdout)
	}
}

func TestCat(t *testing.T) {
	isolate(t)
	dirA, dirB := fixture(t)

	archivePath := filepath.Join(t.TempDir(), "lib.jar")
	testutil.WriteArchive(t, archivePath, map[string]string{"res/message.txt": "hello from jar"})

	got := execute(t, "", "cat", "--root", dirA, "--root", archivePath, "--root", dirB,
		"shared.txt", "res/message.txt")
	if got.err != nil {
		t.Fatalf("cat failed: %v", got.err)
	}
	if got.stdout != "shared from ahello from jar" {
		t.Errorf("stdout = %q", got.stdout)
	}
}

func TestCat_NotFound(t *testing.T) {
	isolate(t)
	dirA, _ := fixture(t)

	got := execute(t, "", "cat", "--root", dirA, "missing.txt")
	if !errors.Is(got.err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", got.err)
	}
}

func TestList(t *testing.T) {
	isolate(t)
	dirA, dirB := fixture(t)

	got := execute(t, "", "list", "--root", dirA, "--root", dirB, "--json")
	if got.err != nil {
		t.Fatalf("list failed: %v", got.err)
	}
	var names []string
	if err := json.Unmarshal([]byte(got.stdout), &names); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if len(names) != 3 {
		t.Errorf("names = %v, want 3 distinct names", names)
	}

	got = execute(t, "", "list", "--root", dirA, "--root", dirB, "--prefix", "com/example/")
	if got.err != nil {
		t.Fatalf("list failed: %v", got.err)
	}
	lines := strings.Split(strings.TrimSpace(got.stdout), "\n")
	if len(lines) != 2 {
		t.Errorf("filtered list = %q, want two names", got.stdout)
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "com/example/") {
			t.Errorf("unexpected name %q", line)
		}
	}
}

func TestIndexFlush_ReusesSavedIndex(t *testing.T) {
	isolate(t)
	dirA, dirB := fixture(t)
	cacheDir := t.TempDir()

	for _, backend := range []string{config.BackendFile, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			path := writeConfigFile(t, fmt.Sprintf(`
roots:
  - location: %s
  - location: %s
cache_dir: %s
persistent_index:
  backend: %s
  path: ${ROOTSET_CACHE}/%s
`, dirA, dirB, cacheDir, backend, backend))

			flush := func() []flushedRoot {
				t.Helper()
				got := execute(t, "", "index", "flush", "--config", path, "--json")
				if got.err != nil {
					t.Fatalf("flush failed: %v\nstderr: %s", got.err, got.stderr)
				}
				var report []flushedRoot
				if err := json.Unmarshal([]byte(got.stdout), &report); err != nil {
					t.Fatalf("decoding output: %v", err)
				}
				if len(report) != 2 {
					t.Fatalf("report = %+v, want two roots", report)
				}
				return report
			}

			for _, r := range flush() {
				if !r.Enumerated || r.Names != 2 {
					t.Errorf("first flush: %+v, want enumerated with 2 names", r)
				}
			}
			for _, r := range flush() {
				if r.Enumerated || r.Names != 2 {
					t.Errorf("second flush: %+v, want loaded with 2 names", r)
				}
			}

			got := execute(t, "", "index", "dump", "--config", path, "--names", "--diagnose", "--json", dirB)
			if got.err != nil {
				t.Fatalf("dump failed: %v", got.err)
			}
			var dumped []dumpedIndex
			if err := json.Unmarshal([]byte(got.stdout), &dumped); err != nil {
				t.Fatalf("decoding output: %v", err)
			}
			if len(dumped) != 1 || !dumped[0].Present || dumped[0].Records != 2 || len(dumped[0].Names) != 2 {
				t.Errorf("dump = %+v, want one present index with 2 records", dumped)
			}
			if !strings.Contains(dumped[0].Diagnostic, `"records"`) {
				t.Errorf("diagnostic = %q, want the records key", dumped[0].Diagnostic)
			}
			if dumped[0].Root != origin(t, "dir", dirB) {
				t.Errorf("dumped root %s, want %s", dumped[0].Root, origin(t, "dir", dirB))
			}
		})
	}
}

func TestIndexFlush_RequiresPersistentIndex(t *testing.T) {
	isolate(t)
	dirA, _ := fixture(t)

	got := execute(t, "", "index", "flush", "--root", dirA, "--no-persistent-index")
	if got.err == nil || !strings.Contains(got.err.Error(), "persistent index is disabled") {
		t.Errorf("err = %v, want persistent index disabled", got.err)
	}
}

func TestIndexDump_UnknownRoot(t *testing.T) {
	isolate(t)
	dirA, dirB := fixture(t)

	got := execute(t, "", "index", "dump", "--root", dirA, dirB)
	if got.err == nil || !strings.Contains(got.err.Error(), "is not a configured root") {
		t.Errorf("err = %v, want not a configured root", got.err)
	}
}

func TestStats_UncachedRootsProbe(t *testing.T) {
	isolate(t)
	dirA, dirB := fixture(t)
	path := writeConfigFile(t, fmt.Sprintf(`
roots:
  - location: %s
  - location: %s
uncached_roots:
  - %s
persistent_index:
  enabled: false
`, dirA, dirB, dirA))

	got := execute(t, "", "stats", "--config", path, "--json",
		"com/example/Bar.class", "com/example/Bar.class", "shared.txt")
	if got.err != nil {
		t.Fatalf("stats failed: %v\nstderr: %s", got.err, got.stderr)
	}
	var report statsReport
	if err := json.Unmarshal([]byte(got.stdout), &report); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if len(report.Roots) != 2 {
		t.Fatalf("roots = %+v", report.Roots)
	}
	uncached, cached := report.Roots[0], report.Roots[1]
	if uncached.Cached || uncached.Probes != 3 || uncached.Enumerations != 0 {
		t.Errorf("uncached root = %+v, want 3 probes and no enumeration", uncached)
	}
	if !cached.Cached || cached.Enumerations != 1 || cached.Names != 2 {
		t.Errorf("cached root = %+v, want one enumeration of 2 names", cached)
	}
}

func TestStats_Table(t *testing.T) {
	isolate(t)
	dirA, _ := fixture(t)

	got := execute(t, "", "stats", "--root", dirA, "--no-persistent-index", "shared.txt")
	if got.err != nil {
		t.Fatalf("stats failed: %v", got.err)
	}
	for _, want := range []string{"fingerprint:", "ROOT", "STATE", origin(t, "dir", dirA), "cached"} {
		if !strings.Contains(got.stdout, want) {
			t.Errorf("table missing %q:\n%s", want, got.stdout)
		}
	}
}

func TestWatch_ResolvesStdin(t *testing.T) {
	isolate(t)
	dirA, dirB := fixture(t)

	stdin := "com/example/Bar.class\n\ncom/example/Baz.class\n../bad\n"
	got := execute(t, stdin, "watch", "--root", dirA, "--root", dirB, "--no-persistent-index")
	if got.err != nil {
		t.Fatalf("watch failed: %v", got.err)
	}
	want := "com/example/Bar.class\t" + origin(t, "dir", dirB) + "\n" +
		"com/example/Baz.class\t-\n" +
		"../bad\t-\n"
	if got.stdout != want {
		t.Errorf("stdout = %q, want %q", got.stdout, want)
	}
}

func TestVersion(t *testing.T) {
	got := execute(t, "", "--version")
	if got.err != nil {
		t.Fatalf("--version failed: %v", got.err)
	}
	if !strings.HasPrefix(got.stdout, "rootset ") {
		t.Errorf("stdout = %q", got.stdout)
	}
}

func TestNoConfiguration(t *testing.T) {
	isolate(t)

	got := execute(t, "", "list")
	if got.err == nil || !strings.Contains(got.err.Error(), config.EnvConfig) {
		t.Errorf("err = %v, want a pointer to %s", got.err, config.EnvConfig)
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	isolate(t)
	dirA, _ := fixture(t)
	t.Setenv(config.EnvConfig, writeConfigFile(t, fmt.Sprintf("roots:\n  - location: %s\n", dirA)))

	got := execute(t, "", "resolve", "com/example/Foo.class")
	if got.err != nil {
		t.Fatalf("resolve failed: %v", got.err)
	}
	if !strings.Contains(got.stdout, origin(t, "dir", dirA)) {
		t.Errorf("stdout = %q", got.stdout)
	}
}
