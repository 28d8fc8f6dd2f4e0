// Package transfer implements the protocol-agnostic file-transfer
// pipeline shared by FTP, SFTP, and HTTP downloads: the
// overwrite-decision dispatch table, resume handling, size/time
// reconciliation, and progress reporting, per spec.md section 4.6.
// Grounded on rclone's fs/operations copy/move dispatch pattern, which
// similarly centralizes "should this file be copied" decisions above
// any one backend.
package transfer

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/transferengine/engine/transport/ratelimit"
)

// OverwriteAction is the result of consulting the overwrite policy for
// a file that already exists at the destination.
type OverwriteAction int

const (
	ActionOverwrite OverwriteAction = iota
	ActionResume
	ActionSkip
	ActionRename
	ActionAsk
)

// UIDecision is one of the seven file-exists answers the UI can return
// for a conflicting transfer, per spec.md section 4.6.
type UIDecision string

const (
	DecisionOverwrite          UIDecision = "overwrite"
	DecisionOverwriteNewer     UIDecision = "overwrite-newer"
	DecisionOverwriteSize      UIDecision = "overwrite-size"
	DecisionOverwriteSizeOrNewer UIDecision = "overwrite-size-or-newer"
	DecisionResume             UIDecision = "resume"
	DecisionRename             UIDecision = "rename"
	DecisionSkip               UIDecision = "skip"
)

// OverwriteRule is one entry in the dispatch table: given the existing
// and incoming file's relative age/size, decide what to do.
type OverwriteRule func(existing LocalFileInfo, incomingSize int64, incomingModTime time.Time) (OverwriteAction, bool)

// LocalFileInfo describes a pre-existing local file at the destination.
type LocalFileInfo struct {
	Exists  bool
	Size    int64
	ModTime time.Time
}

// DefaultOverwriteTable holds a single rule: a missing local file is
// overwritten. For an existing file no rule matches, so Decide falls
// back to asking; the table has no resume rule.
var DefaultOverwriteTable = []OverwriteRule{
	func(existing LocalFileInfo, incomingSize int64, incomingModTime time.Time) (OverwriteAction, bool) {
		if !existing.Exists {
			return ActionOverwrite, true
		}
		return 0, false
	},
}

// Decide walks table in order and returns the first rule's decision, or
// ActionAsk if none match.
func Decide(table []OverwriteRule, existing LocalFileInfo, incomingSize int64, incomingModTime time.Time) OverwriteAction {
	for _, rule := range table {
		if action, matched := rule(existing, incomingSize, incomingModTime); matched {
			return action
		}
	}
	return ActionAsk
}

// OverwriteDecisionRule reconciles one of the seven UI answers against
// the conflicting files' size/time, per spec.md section 4.6/4.7.
type OverwriteDecisionRule func(existing LocalFileInfo, incomingSize int64, incomingModTime time.Time) OverwriteAction

// sizeDiffers reports whether incomingSize is known to differ from the
// existing local file's size; an unknown incoming size (-1) is treated
// as differing, matching the conservative "can't tell, so overwrite"
// reading of spec.md section 4.6.
func sizeDiffers(existing LocalFileInfo, incomingSize int64) bool {
	return !existing.Exists || incomingSize < 0 || incomingSize != existing.Size
}

// newer reports whether the incoming file's modification time is known
// to be later than the existing local file's.
func newer(existing LocalFileInfo, incomingModTime time.Time) bool {
	return !existing.Exists || incomingModTime.After(existing.ModTime)
}

// OverwriteDecisionTable maps each of the seven file-exists answers
// spec.md section 4.6 names to the rule that reconciles it: the three
// compound decisions (overwrite-newer, overwrite-size,
// overwrite-size-or-newer) overwrite only when their condition holds
// and skip otherwise; the remaining four are unconditional.
var OverwriteDecisionTable = map[UIDecision]OverwriteDecisionRule{
	DecisionOverwrite: func(LocalFileInfo, int64, time.Time) OverwriteAction {
		return ActionOverwrite
	},
	DecisionOverwriteNewer: func(existing LocalFileInfo, _ int64, incomingModTime time.Time) OverwriteAction {
		if newer(existing, incomingModTime) {
			return ActionOverwrite
		}
		return ActionSkip
	},
	DecisionOverwriteSize: func(existing LocalFileInfo, incomingSize int64, _ time.Time) OverwriteAction {
		if sizeDiffers(existing, incomingSize) {
			return ActionOverwrite
		}
		return ActionSkip
	},
	DecisionOverwriteSizeOrNewer: func(existing LocalFileInfo, incomingSize int64, incomingModTime time.Time) OverwriteAction {
		if sizeDiffers(existing, incomingSize) || newer(existing, incomingModTime) {
			return ActionOverwrite
		}
		return ActionSkip
	},
	DecisionResume: func(LocalFileInfo, int64, time.Time) OverwriteAction {
		return ActionResume
	},
	DecisionRename: func(LocalFileInfo, int64, time.Time) OverwriteAction {
		return ActionRename
	},
	DecisionSkip: func(LocalFileInfo, int64, time.Time) OverwriteAction {
		return ActionSkip
	},
}

// Reconcile looks up answer in table and applies its rule to existing
// and the incoming file's known size/mtime; an answer the table
// doesn't recognize defaults to ActionSkip, the fail-safe choice when
// the UI sends something this engine doesn't understand.
func Reconcile(table map[UIDecision]OverwriteDecisionRule, answer UIDecision, existing LocalFileInfo, incomingSize int64, incomingModTime time.Time) OverwriteAction {
	rule, ok := table[answer]
	if !ok {
		return ActionSkip
	}
	return rule(existing, incomingSize, incomingModTime)
}

// Progress is reported periodically while a transfer runs.
type Progress struct {
	BytesTransferred int64
	TotalBytes       int64 // -1 if unknown
	ElapsedTime      time.Duration
}

// ProgressFunc receives periodic Progress updates.
type ProgressFunc func(Progress)

// Result describes the outcome of one completed transfer.
type Result struct {
	BytesTransferred int64
	Resumed          bool
	ResumeNotHonored bool // spec.md section 8 E3: server ignored the resume request
}

// Copy streams src into dst, honoring a requested start offset and
// calling onProgress at most once per reportInterval. If the server
// does not honor a resume request (detected by the caller via
// serverHonoredResume=false while startOffset>0), it seeks dst back to
// 0 before writing and reports ResumeNotHonored, matching spec.md
// section 8's E3 scenario. Every chunk is gated
// through limiter.Acquire(dir, n) before it is written, per spec.md
// section 2's "Backend = Read/Write/Peek + rate-limit gate" design and
// section 5's rate-limiter contract; limiter may be nil to skip rate
// limiting entirely (e.g. in tests exercising only the seek/resume
// logic).
func Copy(ctx context.Context, dst io.WriteSeeker, src io.Reader, startOffset int64, serverHonoredResume bool, reportInterval time.Duration, limiter *ratelimit.Limiter, dir ratelimit.Direction, onProgress ProgressFunc) (Result, error) {
	result := Result{Resumed: startOffset > 0 && serverHonoredResume}

	if startOffset > 0 && !serverHonoredResume {
		if _, err := dst.Seek(0, io.SeekStart); err != nil {
			return result, err
		}
		result.ResumeNotHonored = true
	} else if startOffset > 0 {
		if _, err := dst.Seek(startOffset, io.SeekStart); err != nil {
			return result, err
		}
		result.BytesTransferred = startOffset
	}

	start := time.Now()
	lastReport := start
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			if limiter != nil {
				if aerr := limiter.Acquire(ctx, dir, int64(n)); aerr != nil {
					return result, aerr
				}
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return result, werr
			}
			result.BytesTransferred += int64(n)
			if onProgress != nil && reportInterval > 0 && time.Since(lastReport) >= reportInterval {
				onProgress(Progress{BytesTransferred: result.BytesTransferred, TotalBytes: -1, ElapsedTime: time.Since(start)})
				lastReport = time.Now()
			}
		}
		if rerr == io.EOF {
			if onProgress != nil {
				onProgress(Progress{BytesTransferred: result.BytesTransferred, TotalBytes: result.BytesTransferred, ElapsedTime: time.Since(start)})
			}
			return result, nil
		}
		if rerr != nil {
			return result, rerr
		}
	}
}

// EnsureLocalDir creates dir (and any missing parents), reporting
// whether it newly created the leaf directory, so callers can emit the
// "local directory created" notification spec.md section 4.6 mentions.
func EnsureLocalDir(dir string) (created bool, err error) {
	if _, err := os.Stat(dir); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	return true, nil
}
