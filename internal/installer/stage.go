package installer

// Stage is a step of the linear install plan.
type Stage int

// StageNone is the completed stage of a run that failed before any stage finished.
const StageNone Stage = -1

const (
	StagePreflightCheck Stage = iota
	StageLocateInstall
	StageVerifyNotRunning
	StageDetectArchitecture
	StageResolveEndpoint
	StageFetchPatchMetadata
	StageDownloadPatch
	StageApplyPatch
	StageDownloadLoaderArchive
	StageExtractLoaderArchive
	StageRegisterLoaderEntrypoint
	StageFetchPluginMetadata
	StageDownloadPluginArchive
	StageExtractPluginArchive
	StageDone
)

var stageNames = [...]string{
	StagePreflightCheck:           "preflight check",
	StageLocateInstall:            "locate install",
	StageVerifyNotRunning:         "verify not running",
	StageDetectArchitecture:       "detect architecture",
	StageResolveEndpoint:          "resolve endpoint",
	StageFetchPatchMetadata:       "fetch patch metadata",
	StageDownloadPatch:            "download patch",
	StageApplyPatch:               "apply patch",
	StageDownloadLoaderArchive:    "download loader archive",
	StageExtractLoaderArchive:     "extract loader archive",
	StageRegisterLoaderEntrypoint: "register loader entrypoint",
	StageFetchPluginMetadata:      "fetch plugin metadata",
	StageDownloadPluginArchive:    "download plugin archive",
	StageExtractPluginArchive:     "extract plugin archive",
	StageDone:                     "done",
}

// String returns the string representation of the stage
func (s Stage) String() string {
	if s == StageNone {
		return "none"
	}
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// IsPrecondition reports whether a failure at s means the host was not
// ready to install rather than that an install step failed.
func (s Stage) IsPrecondition() bool {
	return s >= StagePreflightCheck && s <= StageDetectArchitecture
}
