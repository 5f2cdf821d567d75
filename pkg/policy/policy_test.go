package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(patterns []Pattern) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, p.Name)
	}
	return out
}

func TestDefaultIsIsolated(t *testing.T) {
	a := Default()
	b := Default()

	a.DependencyDenylist = a.DependencyDenylist[:1]
	a.MarkupDenylist[0] = "<changed"

	assert.Len(t, b.DependencyDenylist, len(dependencyDenylist))
	assert.Equal(t, "<!doctype", b.MarkupDenylist[0])
	assert.Equal(t, "<!doctype", markupDenylist[0])
}

func TestMatchDependency(t *testing.T) {
	p := Default()

	tests := []struct {
		ident string
		want  []string
	}{
		{"reqwest v0.11.27", []string{"reqwest"}},
		{"Reqwest v0.11.27", []string{"reqwest"}},
		{"hyper v1.2.0", []string{"hyper"}},
		{"hyper-util v0.1.3", []string{"hyper"}},
		{"h2 v0.4.4", []string{"h2"}},
		{"ureq v2.9.1", []string{"ureq"}},
		{"rustls v0.22.4", []string{"rustls"}},
		{"native-tls v0.2.11", []string{"native-tls"}},
		{"openssl-sys v0.9.102", []string{"openssl"}},
		{"tokio v1.37.0", []string{"tokio"}},
		{"async-std v1.12.0", []string{"async-std"}},
		{"github.com/go-resty/resty/v2 v2.12.0", []string{"resty"}},
		{"golang.org/x/net v0.24.0", []string{"x/net"}},
		{"pulldown-cmark v0.10.3", nil},
		{"serde_yaml v0.9.34", nil},
		{"sha2 v0.10.8", nil},
		{"clap v4.5.4", nil},
		{"github.com/yuin/goldmark v1.7.4", nil},
		{"gongwen v0.1.0", nil},
		{"h2o v0.2.0", nil},
	}

	for _, tt := range tests {
		t.Run(tt.ident, func(t *testing.T) {
			got := p.MatchDependency(tt.ident)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestMatchSource(t *testing.T) {
	p := Default()

	tests := []struct {
		line string
		want []string
	}{
		{`use std::net::TcpStream;`, []string{"std::net", "TcpStream"}},
		{`let s = UdpSocket::bind("0.0.0.0:0")?;`, []string{"UdpSocket"}},
		{`let l = TcpListener::bind(addr)?;`, []string{"TcpListener"}},
		{`std::process::Command::new("sh")`, []string{"std::process", "process::Command", "Command::new"}},
		{`use std::{io::Read, process::Command as Sh};`, []string{"process::Command", "std::{process}"}},
		{`use std::{io, process};`, []string{"std::{process}"}},
		{`use std::{fmt, net::SocketAddr};`, []string{"std::{net}"}},
		{`let fd = unsafe { libc::socket(libc::AF_INET, libc::SOCK_STREAM, 0) };`, []string{"libc socket"}},
		{`match unsafe { libc::fork() } {`, []string{"libc process"}},
		{`unsafe { libc::execvp(path.as_ptr(), argv.as_ptr()) };`, []string{"libc process"}},
		{`libc::posix_spawnp(&mut pid, file, fa, attr, argv, envp)`, []string{"libc process"}},
		{`use nix::sys::socket::{socket, AddressFamily};`, []string{"nix::sys::socket"}},
		{`let child = nix::unistd::fork()?;`, []string{"nix process"}},
		{`conn, err := net.Dial("tcp", addr)`, []string{"net.Dial"}},
		{`d := net.Dialer{Timeout: time.Second}`, []string{"net.Dialer"}},
		{`var lc net.ListenConfig`, []string{"net.ListenConfig"}},
		{`ln, _ := net.ListenTCP("tcp", nil)`, []string{"net.Listen"}},
		{`	"net"`, []string{"import net"}},
		{`	"golang.org/x/sys/unix"`, []string{"x/sys/unix"}},
		{`fd, _ := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)`, []string{"unix.Socket"}},
		{`	"os/exec"`, []string{"import os/exec"}},
		{`cmd := exec.CommandContext(ctx, "ls")`, []string{"exec.Command"}},
		{`c := &exec.Cmd{Path: "/bin/sh"}`, []string{"exec.Cmd"}},
		{`	"net/http"`, []string{"net/http"}},
		{`os.StartProcess(name, argv, attr)`, []string{"os.StartProcess"}},
		// case sensitive, identifier exact
		{`let tcpstream = 1;`, nil},
		{`struct MyTcpStreamLike;`, nil},
		{`// writes to a stream`, nil},
		{`let cmd = Commander::new();`, nil},
		{`use std::io::Read;`, nil},
		{`use std::{fmt, io};`, nil},
		{`let n = libc::strlen(s);`, nil},
		{`d := mynet.Dialer{}`, nil},
		{`	"net/netip"`, nil},
		{`s := "network"`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := p.MatchSource(tt.line)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestMatchMarkup(t *testing.T) {
	p := Default()

	token, offset, ok := p.MatchMarkup("#set page()\nhello <SCRIPT>alert(1)</script>")
	require.True(t, ok)
	assert.Equal(t, "<script", token)
	assert.Equal(t, strings.Index("#set page()\nhello <SCRIPT>", "<SCRIPT>"), offset)

	token, _, ok = p.MatchMarkup("<img src=x> then <html>")
	require.True(t, ok)
	assert.Equal(t, "<img", token, "earliest token wins")

	_, _, ok = p.MatchMarkup("#heading(level: 1)[a < b]")
	assert.False(t, ok)
}

func TestMatchMarkup_OffsetInOriginalText(t *testing.T) {
	p := Default()

	// Ⱥ lowers to a longer encoding and K (Kelvin) to a shorter one
	for _, prefix := range []string{
		strings.Repeat("Ⱥ", 40),
		strings.Repeat("\u212a", 40),
		"\xff\xfe invalid",
	} {
		output := "# ok\n" + prefix + "\nb\n<script>x</script>\n"
		token, offset, ok := p.MatchMarkup(output)
		require.True(t, ok)
		assert.Equal(t, "<script", token)
		assert.Equal(t, strings.Index(output, "<script"), offset)
	}
}

func TestCategoryPattern(t *testing.T) {
	p := Default()

	for _, category := range []string{
		"技术-报告",
		"tech report_2",
		"Café",
		"Cafe\u0301",
		"レポート",
		"보고서",
		"Отчёт",
		"تقرير",
	} {
		assert.True(t, p.CategoryPattern.MatchString(category), category)
	}
	assert.False(t, p.CategoryPattern.MatchString("tech<report>"))
	assert.False(t, p.CategoryPattern.MatchString("tech/report"))
	assert.False(t, p.CategoryPattern.MatchString(""))
	assert.False(t, p.CategoryPattern.MatchString("报告!"))
	assert.False(t, p.CategoryPattern.MatchString("report 📄"))
}

func TestFileFilters(t *testing.T) {
	p := Default()

	assert.True(t, p.IsSourceFile("src/main.rs"))
	assert.True(t, p.IsSourceFile("cmd/main.go"))
	assert.False(t, p.IsSourceFile("README.md"))
	assert.False(t, p.IsSourceFile("Cargo.toml"))

	assert.True(t, p.IsSkippedDir("target"))
	assert.True(t, p.IsSkippedDir(".git"))
	assert.False(t, p.IsSkippedDir("src"))
}

func TestPatternExpr(t *testing.T) {
	p := Default()
	for _, pat := range p.DependencyDenylist {
		assert.True(t, strings.HasPrefix(pat.Expr(), "(?i)"), pat.Name)
	}
	for _, pat := range p.SourceDenylist {
		assert.False(t, strings.HasPrefix(pat.Expr(), "(?i)"), pat.Name)
	}
}
