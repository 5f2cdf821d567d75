package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/platinummonkey/plugingate/pkg/policy"
	"github.com/platinummonkey/plugingate/pkg/verdict"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func TestSourceScanner_CleanTree(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/main.rs": "use std::io::{self, Read};\n\nfn main() {\n    let mut s = String::new();\n    io::stdin().read_to_string(&mut s).unwrap();\n}\n",
		"src/lib.rs":  "pub fn convert(s: &str) -> String { s.to_string() }\n",
		"README.md":   "Never call std::net from here.\n",
	})

	s := NewSourceScanner(policy.Default(), getTestLogger())
	result := s.Check(context.Background(), root)
	assert.Equal(t, verdict.StatusPass, result.Status)
	assert.Equal(t, verdict.StageSource, result.Stage)
	assert.Contains(t, result.Message, "2 source file(s)")
}

func TestSourceScanner_ForbiddenAPIs(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/net.rs":  "use std::io;\nuse std::net::TcpStream;\n\nfn dial() {\n    let _ = TcpStream::connect(\"127.0.0.1:80\");\n}\n",
		"src/main.rs": "fn main() {\n    std::process::Command::new(\"sh\");\n}\n",
		"cmd/x.go":    "package main\n\nimport \"net\"\n\nfunc main() { net.Dial(\"tcp\", \"x:1\") }\n",
	})

	s := NewSourceScanner(policy.Default(), getTestLogger())
	result := s.Check(context.Background(), root)
	require.True(t, result.Failed())
	assert.Equal(t, ReasonForbiddenSourceAPI, result.Reason)
	assert.Equal(t, verdict.KindPolicyViolation, result.Kind)
	assert.Equal(t, []string{
		`cmd/x.go:3: import "net"`,
		`cmd/x.go:5: func main() { net.Dial("tcp", "x:1") }`,
		`src/main.rs:2: std::process::Command::new("sh");`,
		`src/net.rs:2: use std::net::TcpStream;`,
		`src/net.rs:5: let _ = TcpStream::connect("127.0.0.1:80");`,
	}, result.Evidence)
}

func TestSourceScanner_IdentifierExact(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/lib.rs": "struct MyTcpStreamLike;\nlet tcpstream = 1;\nfn std_net() {}\n",
		"main.go":    "package main\n\n// mynet.Dialer is unrelated\nvar x = internet.DialogBox\n",
	})

	result := NewSourceScanner(policy.Default(), getTestLogger()).Check(context.Background(), root)
	assert.Equal(t, verdict.StatusPass, result.Status, "evidence: %v", result.Evidence)
}

func TestSourceScanner_SkipsBuildDirs(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/main.rs":                  "fn main() {}\n",
		"target/debug/build/out.rs":    "use std::net::TcpStream;\n",
		"vendor/github.com/x/y/y.go":   "package y\nimport \"net/http\"\n",
		".git/hooks/x.rs":              "std::process::exit(0);\n",
		"node_modules/pkg/index.rs":    "UdpSocket::bind(\"0.0.0.0:0\");\n",
		"docs/examples/snippet.rs.txt": "TcpListener::bind(\"0.0.0.0:80\");\n",
	})

	result := NewSourceScanner(policy.Default(), getTestLogger()).Check(context.Background(), root)
	assert.Equal(t, verdict.StatusPass, result.Status, "evidence: %v", result.Evidence)
}

func TestSourceScanner_Unreadable(t *testing.T) {
	s := NewSourceScanner(policy.Default(), getTestLogger())

	result := s.Check(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.True(t, result.Failed())
	assert.Equal(t, ReasonSourceUnreadable, result.Reason)
	assert.Equal(t, verdict.KindContractViolation, result.Kind)

	file := filepath.Join(t.TempDir(), "main.rs")
	require.NoError(t, os.WriteFile(file, []byte("fn main() {}\n"), 0644))
	result = s.Check(context.Background(), file)
	assert.Equal(t, ReasonSourceUnreadable, result.Reason)
}

func TestSourceScanner_Scan(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.go": "package a\n\nimport \"os/exec\"\n\nvar _ = exec.CommandContext\n",
	})

	findings, files, err := NewSourceScanner(policy.Default(), getTestLogger()).Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, files)
	require.Len(t, findings, 2)
	assert.Equal(t, "a.go", findings[0].File)
	assert.Equal(t, 3, findings[0].Line)
	assert.Equal(t, "import os/exec", findings[0].Pattern.Name)
	assert.Equal(t, 5, findings[1].Line)
	assert.Equal(t, "exec.Command", findings[1].Pattern.Name)
	assert.Equal(t, policy.CategoryProcess, findings[1].Pattern.Category)
}

func TestSourceScanner_IndirectPrimitives(t *testing.T) {
	files := map[string]string{
		"rust_grouped_use.rs": "use std::{io::Read, process::Command as Sh};\n\nfn main() {\n    Sh::new(\"curl\");\n}\n",
		"rust_libc.rs":        "fn main() {\n    let fd = unsafe { libc::socket(2, 1, 0) };\n}\n",
		"rust_fork.rs":        "fn main() {\n    unsafe { libc::fork() };\n}\n",
		"go_dialer.go":        "package main\n\nvar d = new(net.Dialer)\n",
		"go_listencfg.go":     "package main\n\nvar lc net.ListenConfig\n",
		"go_execcmd.go":       "package main\n\nvar c = &exec.Cmd{Path: \"/bin/sh\"}\n",
		"go_unix.go":          "package main\n\nimport (\n\t\"golang.org/x/sys/unix\"\n)\n",
	}

	s := NewSourceScanner(policy.Default(), getTestLogger())
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			root := writeTree(t, map[string]string{name: content})
			result := s.Check(context.Background(), root)
			require.True(t, result.Failed(), "evidence: %v", result.Evidence)
			assert.Equal(t, ReasonForbiddenSourceAPI, result.Reason)
		})
	}
}

func TestSourceScanner_Cancelled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.rs": "fn main() {}\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewSourceScanner(policy.Default(), getTestLogger()).Scan(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}
