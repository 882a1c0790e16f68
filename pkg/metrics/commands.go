package metrics

import (
	"strconv"

	"github.com/cocosip/fastdfs-go/pkg/protocol"
)

// commandName maps a command byte to a stable metric label.
func commandName(cmd byte) string {
	switch cmd {
	case protocol.TrackerCmdQueryStoreWithoutGroup, protocol.TrackerCmdQueryStoreWithGroup,
		protocol.TrackerCmdQueryStoreAllWithoutGrp, protocol.TrackerCmdQueryStoreAllWithGroup:
		return "query_store"
	case protocol.TrackerCmdQueryFetchOne, protocol.TrackerCmdQueryFetchAll:
		return "query_fetch"
	case protocol.TrackerCmdQueryUpdate:
		return "query_update"
	case protocol.StorageCmdUploadFile, protocol.StorageCmdUploadAppenderFile:
		return "upload"
	case protocol.StorageCmdUploadSlaveFile:
		return "upload_slave"
	case protocol.StorageCmdModifyFile:
		return "modify"
	case protocol.StorageCmdTruncateFile:
		return "truncate"
	case protocol.StorageCmdDownloadFile:
		return "download"
	case protocol.StorageCmdDeleteFile:
		return "delete"
	case protocol.StorageCmdAppendFile:
		return "append"
	case protocol.StorageCmdSetMetadata:
		return "set_metadata"
	case protocol.StorageCmdGetMetadata:
		return "get_metadata"
	case protocol.StorageCmdQueryFileInfo:
		return "file_info"
	case protocol.CmdActiveTest:
		return "active_test"
	default:
		return "cmd_" + strconv.Itoa(int(cmd))
	}
}
