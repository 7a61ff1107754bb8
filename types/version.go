package types

// Version is the canonical project version.
// The CLI, the result file format and the completion event share this version.
const Version = "0.3.0"

// ContractVersion is the version stamped on result files and completion events.
const ContractVersion = Version
