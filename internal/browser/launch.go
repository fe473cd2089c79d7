// Package browser opens or reloads a local browser tab once the server is
// answering. On macOS it prefers a smart reload of an existing tab via
// AppleScript; elsewhere it falls back to the platform opener. Failures are
// logged, never fatal: the URL is always printed for manual use.
package browser

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"strconv"
	"time"
)

var commandContext = exec.CommandContext

const chromeReloadScript = `
on run argv
    set targetBaseURL to item 1 of argv
    set reloadURL to item 2 of argv
    tell application "Google Chrome"
        activate
        if (count of windows) = 0 then
            make new window
        end if

        set matched to false
        repeat with w in windows
            repeat with t in tabs of w
                set tabURL to ""
                try
                    set tabURL to (URL of t) as text
                end try
                if tabURL starts with targetBaseURL then
                    set active tab index of w to (index of t)
                    set index of w to 1
                    set URL of active tab of w to reloadURL
                    set matched to true
                    exit repeat
                end if
            end repeat
            if matched then
                exit repeat
            end if
        end repeat

        if matched is false then
            tell window 1
                set newTab to (make new tab with properties {URL:reloadURL})
                set active tab index to (index of newTab)
            end tell
        end if
    end tell
end run
`

const safariReloadScript = `
on run argv
    set targetBaseURL to item 1 of argv
    set reloadURL to item 2 of argv
    tell application "Safari"
        activate
        if (count of windows) = 0 then
            make new document with properties {URL:reloadURL}
            return
        end if

        set matched to false
        repeat with w in windows
            repeat with t in tabs of w
                set tabURL to ""
                try
                    set tabURL to (URL of t) as text
                end try
                if tabURL starts with targetBaseURL then
                    set current tab of w to t
                    set index of w to 1
                    set URL of current tab of w to reloadURL
                    set matched to true
                    exit repeat
                end if
            end repeat
            if matched then
                exit repeat
            end if
        end repeat

        if matched is false then
            tell window 1
                set current tab to (make new tab with properties {URL:reloadURL})
            end tell
        end if
    end tell
end run
`

// LaunchWhenReady polls the URL until the server answers, then opens or
// reloads a tab in the configured browser. Runs until the server is up, the
// 20s deadline passes, or ctx is cancelled.
func LaunchWhenReady(ctx context.Context, baseURL, target string) {
	if !waitForServer(ctx, baseURL, 20*time.Second) {
		return
	}
	openOrReload(ctx, baseURL, target)
}

func waitForServer(ctx context.Context, rawURL string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1500 * time.Millisecond}

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		resp, err := client.Get(rawURL)
		if err == nil {
			resp.Body.Close()
			return true
		}
		time.Sleep(250 * time.Millisecond)
	}
	return false
}

func openOrReload(ctx context.Context, baseURL, target string) {
	reloadURL := withCacheBuster(baseURL)

	if runtime.GOOS == "darwin" {
		switch target {
		case "chrome":
			if runAppleScript(ctx, chromeReloadScript, baseURL, reloadURL) {
				return
			}
			if openApp(ctx, "Google Chrome", reloadURL) {
				return
			}
		case "safari":
			if runAppleScript(ctx, safariReloadScript, baseURL, reloadURL) {
				return
			}
			if openApp(ctx, "Safari", reloadURL) {
				return
			}
		default:
			if runAppleScript(ctx, chromeReloadScript, baseURL, reloadURL) {
				return
			}
			if runAppleScript(ctx, safariReloadScript, baseURL, reloadURL) {
				return
			}
		}
	}

	if openDefault(ctx, reloadURL) {
		return
	}
	log.Printf("Could not auto-open a browser. Open this URL manually: %s", baseURL)
}

func runAppleScript(ctx context.Context, script, targetBaseURL, reloadURL string) bool {
	runCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	cmd := commandContext(runCtx, "osascript", "-e", script, targetBaseURL, reloadURL)
	return cmd.Run() == nil
}

func openApp(ctx context.Context, appName, url string) bool {
	runCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	cmd := commandContext(runCtx, "open", "-a", appName, url)
	return cmd.Run() == nil
}

func openDefault(ctx context.Context, url string) bool {
	runCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = commandContext(runCtx, "open", url)
	case "windows":
		cmd = commandContext(runCtx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = commandContext(runCtx, "xdg-open", url)
	}
	return cmd.Run() == nil
}

// withCacheBuster appends a millisecond timestamp query parameter so a
// reloaded tab never serves a stale cached frontend.
func withCacheBuster(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	query := parsed.Query()
	query.Set("__v", strconv.FormatInt(time.Now().UnixMilli(), 10))
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// Target validates a browser-target selection, defaulting to chrome.
func Target(raw string) string {
	switch raw {
	case "chrome", "safari", "default":
		return raw
	}
	return "chrome"
}
