package protocol

// Fixed field widths used across request and response bodies.
//
// The cluster protocol uses fixed-width, NUL-padded text fields so that
// every body layout can be computed without a length prefix per field.
const (
	// GroupNameLen is the width of a group name field
	GroupNameLen = 16

	// IPAddrLen is the width of an ip address field (textual, NUL padded)
	IPAddrLen = 15

	// ExtNameLen is the width of a file extension field
	ExtNameLen = 6

	// PrefixNameLen is the width of a slave file name prefix field
	PrefixNameLen = 16

	// HeaderSize is the size of the fixed packet header:
	// 8-byte big-endian body length + 1-byte command + 1-byte status
	HeaderSize = 10
)

// MaxBodySize caps the body length a response header may declare.
//
// A header announcing more than this is treated as a framing violation
// rather than an allocation attempt. 512 MiB comfortably covers whole-file
// downloads this client is meant for; larger transfers should use
// offset+length reads.
const MaxBodySize = 512 << 20

// Tracker commands.
const (
	TrackerCmdResp                     = 100
	TrackerCmdQueryStoreWithoutGroup   = 101
	TrackerCmdQueryFetchOne            = 102
	TrackerCmdQueryUpdate              = 103
	TrackerCmdQueryStoreWithGroup      = 104
	TrackerCmdQueryFetchAll            = 105
	TrackerCmdQueryStoreAllWithoutGrp  = 106
	TrackerCmdQueryStoreAllWithGroup   = 107
)

// Storage commands.
const (
	StorageCmdUploadFile         = 11
	StorageCmdDeleteFile         = 12
	StorageCmdSetMetadata        = 13
	StorageCmdDownloadFile       = 14
	StorageCmdGetMetadata        = 15
	StorageCmdUploadSlaveFile    = 21
	StorageCmdQueryFileInfo      = 22
	StorageCmdUploadAppenderFile = 23
	StorageCmdAppendFile         = 24
	StorageCmdModifyFile         = 34
	StorageCmdTruncateFile       = 36
)

// CmdActiveTest is the liveness probe both trackers and storages answer.
const CmdActiveTest = 111

// StatusOK is the status byte of a successful response.
const StatusOK = 0

// Metadata wire separators. Pairs are serialized as
// key \x02 value \x01 key \x02 value ...
const (
	recordSeparator = '\x01'
	fieldSeparator  = '\x02'
)

// Metadata set modes for SetMetadataRequest.
const (
	// MetadataOverwrite replaces all existing metadata of the file
	MetadataOverwrite = 'O'

	// MetadataMerge merges the given pairs into the existing metadata
	MetadataMerge = 'M'
)
