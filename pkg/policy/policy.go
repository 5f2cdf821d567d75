package policy

import (
	"path/filepath"
	"regexp"
)

// Pattern is a single denylist entry
type Pattern struct {
	Name     string         `json:"name" yaml:"name"`
	Category string         `json:"category" yaml:"category"`
	Regexp   *regexp.Regexp `json:"-" yaml:"-"`
}

// Expr returns the source of the compiled expression
func (p Pattern) Expr() string {
	return p.Regexp.String()
}

// Pattern categories
const (
	CategoryHTTPClient   = "http-client"
	CategoryHTTPEngine   = "http-engine"
	CategoryTLS          = "tls"
	CategoryAsyncRuntime = "async-runtime"
	CategoryRPC          = "rpc"
	CategorySocket       = "socket"
	CategoryListener     = "listener"
	CategoryProcess      = "process"
)

// Dependency denylist, matched case-insensitively against the identifier of
// every edge of the resolved dependency listing: the name followed by
// " v<version>" when a version is known. Listing paths are never matched.
var dependencyDenylist = []Pattern{
	dep("reqwest", CategoryHTTPClient, `\breqwest\b`),
	dep("ureq", CategoryHTTPClient, `\bureq\b`),
	dep("attohttpc", CategoryHTTPClient, `\battohttpc\b`),
	dep("isahc", CategoryHTTPClient, `\bisahc\b`),
	dep("surf", CategoryHTTPClient, `\bsurf\b`),
	dep("curl", CategoryHTTPClient, `\bcurl(-sys)?\b`),
	dep("resty", CategoryHTTPClient, `github\.com/go-resty/resty`),
	dep("retryablehttp", CategoryHTTPClient, `github\.com/hashicorp/go-retryablehttp`),
	dep("hyper", CategoryHTTPEngine, `\bhyper\b`),
	dep("h2", CategoryHTTPEngine, `(^|[\s/])h2\s+v`),
	dep("fasthttp", CategoryHTTPEngine, `github\.com/valyala/fasthttp`),
	dep("x/net", CategoryHTTPEngine, `golang\.org/x/net\b`),
	dep("rustls", CategoryTLS, `\brustls\b`),
	dep("native-tls", CategoryTLS, `\bnative-tls\b`),
	dep("openssl", CategoryTLS, `\bopenssl(-sys)?\b`),
	dep("tokio", CategoryAsyncRuntime, `\btokio\b`),
	dep("async-std", CategoryAsyncRuntime, `\basync-std\b`),
	dep("smol", CategoryAsyncRuntime, `\bsmol\b`),
	dep("mio", CategoryAsyncRuntime, `\bmio\b`),
	dep("grpc", CategoryRPC, `google\.golang\.org/grpc\b`),
	dep("tonic", CategoryRPC, `\btonic\b`),
}

// Source denylist, matched case-sensitively against each line of the plugin's
// own source files. Entries are anchored on identifier boundaries.
var sourceDenylist = []Pattern{
	src("std::net", CategorySocket, `\bstd::net\b`),
	src("TcpStream", CategorySocket, `\bTcpStream\b`),
	src("UdpSocket", CategorySocket, `\bUdpSocket\b`),
	src("UnixStream", CategorySocket, `\bUnixStream\b`),
	src("UnixDatagram", CategorySocket, `\bUnixDatagram\b`),
	src("TcpListener", CategoryListener, `\bTcpListener\b`),
	src("UnixListener", CategoryListener, `\bUnixListener\b`),
	src("std::process", CategoryProcess, `\bstd::process\b`),
	src("process::Command", CategoryProcess, `\bprocess::Command\b`),
	src("Command::new", CategoryProcess, `\bCommand::new\b`),
	src("std::{net}", CategorySocket, `\bstd::\{[^}]*\bnet\b`),
	src("std::{process}", CategoryProcess, `\bstd::\{[^}]*\bprocess\b`),
	src("libc socket", CategorySocket, `\blibc::(socket|socketpair|connect|bind|listen|accept4?)\b`),
	src("libc process", CategoryProcess, `\blibc::(fork|vfork|clone|system|exec\w*|posix_spawn\w*)\b`),
	src("nix::sys::socket", CategorySocket, `\bnix::sys::socket\b`),
	src("nix process", CategoryProcess, `\bnix::unistd::(fork|exec\w*)\b`),
	// Go: a grouped import line carries only the quoted path
	src("import net", CategorySocket, `"net"`),
	src("net.Dial", CategorySocket, `\bnet\.Dial(TCP|UDP|IP|Unix|Timeout)?\b`),
	src("net.Dialer", CategorySocket, `\bnet\.Dialer\b`),
	src("net.Listen", CategoryListener, `\bnet\.Listen(TCP|UDP|IP|Unix|Packet|Multicast)?\b`),
	src("net.ListenConfig", CategoryListener, `\bnet\.ListenConfig\b`),
	src("net/http", CategorySocket, `"net/http"`),
	src("syscall.Socket", CategorySocket, `\bsyscall\.Socket\b`),
	src("x/sys/unix", CategorySocket, `"golang\.org/x/sys/unix"`),
	src("unix.Socket", CategorySocket, `\bunix\.(Socket|Connect|Bind|Listen)\b`),
	src("import os/exec", CategoryProcess, `"os/exec"`),
	src("exec.Command", CategoryProcess, `\bexec\.Command(Context)?\b`),
	src("exec.Cmd", CategoryProcess, `\bexec\.Cmd\b`),
	src("os.StartProcess", CategoryProcess, `\bos\.StartProcess\b`),
	src("syscall.ForkExec", CategoryProcess, `\bsyscall\.(ForkExec|Exec|StartProcess)\b`),
	src("unix.ForkExec", CategoryProcess, `\bunix\.(ForkExec|Exec)\b`),
}

// Tag-like substrings that must never appear in rendered output
var markupDenylist = []string{
	"<!doctype",
	"<html",
	"<head",
	"<body",
	"<script",
	"<iframe",
	"<img",
	"<link",
}

// Word characters in the Unicode sense: letters, marks, digits, connectors
var categoryPattern = regexp.MustCompile(`^[\p{L}\p{M}\p{N}\p{Pc}\s-]+$`)

func dep(name, category, expr string) Pattern {
	return Pattern{Name: name, Category: category, Regexp: regexp.MustCompile(`(?i)` + expr)}
}

func src(name, category, expr string) Pattern {
	return Pattern{Name: name, Category: category, Regexp: regexp.MustCompile(expr)}
}

// Policy is the fixed rule set a gate run is evaluated against. Checkers
// receive it at construction; tests substitute their own.
type Policy struct {
	DependencyDenylist []Pattern
	SourceDenylist     []Pattern
	SourceExtensions   []string
	SkipDirs           []string
	MarkupDenylist     []string
	DirectivePrefix    string
	CategoryMaxLength  int
	CategoryPattern    *regexp.Regexp
	SandboxProbeInput  string
}

// Default returns the built-in policy. Slices are copied so callers cannot
// alter the package-level denylists.
func Default() *Policy {
	return &Policy{
		DependencyDenylist: append([]Pattern(nil), dependencyDenylist...),
		SourceDenylist:     append([]Pattern(nil), sourceDenylist...),
		SourceExtensions:   []string{".rs", ".go"},
		SkipDirs:           []string{".git", "target", "vendor", "node_modules"},
		MarkupDenylist:     append([]string(nil), markupDenylist...),
		DirectivePrefix:    "#",
		CategoryMaxLength:  20,
		CategoryPattern:    categoryPattern,
		SandboxProbeInput:  "# probe\n",
	}
}

// MatchDependency returns the dependency patterns matching a dependency
// identifier such as "reqwest v0.11.27"
func (p *Policy) MatchDependency(ident string) []Pattern {
	return match(p.DependencyDenylist, ident)
}

// MatchSource returns the source patterns matching a line of source text
func (p *Policy) MatchSource(line string) []Pattern {
	return match(p.SourceDenylist, line)
}

// MatchMarkup returns the first markup token found in output, compared
// case-insensitively, and its byte offset into output. ok is false when none
// is present.
func (p *Policy) MatchMarkup(output string) (token string, offset int, ok bool) {
	offset = -1
	for _, t := range p.MarkupDenylist {
		// Folding inside the regexp keeps offsets valid for the original
		// text, which lowering the whole output would not
		loc := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(t)).FindStringIndex(output)
		if loc != nil && (offset < 0 || loc[0] < offset) {
			token, offset = t, loc[0]
		}
	}
	return token, offset, offset >= 0
}

// IsSourceFile reports whether path carries one of the scanned extensions
func (p *Policy) IsSourceFile(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range p.SourceExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// IsSkippedDir reports whether a directory name is excluded from source scans
func (p *Policy) IsSkippedDir(name string) bool {
	for _, d := range p.SkipDirs {
		if name == d {
			return true
		}
	}
	return false
}

func match(patterns []Pattern, line string) []Pattern {
	var matched []Pattern
	for _, pat := range patterns {
		if pat.Regexp.MatchString(line) {
			matched = append(matched, pat)
		}
	}
	return matched
}
