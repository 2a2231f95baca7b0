package report

// Exit code contract:
// 0 = clean run
// 1 = at least one patch rejected, violated or failed
// 2 = version control failure (commit or push)
// 3 = fatal error (run did not complete)
const (
	ExitClean        = 0
	ExitPatchFailure = 1
	ExitVCSFailure   = 2
	ExitFatal        = 3
)

func ExitCode(r *Report, fatal bool) int {
	if fatal || r == nil {
		return ExitFatal
	}
	if r.HasVCSFailures() {
		return ExitVCSFailure
	}
	if r.HasPatchFailures() {
		return ExitPatchFailure
	}
	return ExitClean
}
