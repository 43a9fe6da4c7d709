package state

var (
	DBG_log_router  = false
	DBG_log_packets = false
	DBG_log_links   = false
)
