package types

const (
	NO_PAGING     uint64 = 0
	NO_PAGINATION uint64 = 0
)

const (
	DOCUMENT_STATUS_NORMAL  = "normal"
	DOCUMENT_STATUS_DELETED = "deleted"
)
