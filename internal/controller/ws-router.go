package controller

import (
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

const (
	typeJoin              = "join"
	typeLeave             = "leave"
	typeSyncCommand       = "sync_command"
	typeReportCurrentTime = "report_current_time"
	typeError             = "error"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdWSMw(), c.loggerWSMw(), c.validateWSMw())
	mux.HandleError(c.handleWSError)

	// membership
	wsrouter.Handle(mux, typeJoin, c.handleJoin)
	wsrouter.Handle(mux, typeLeave, c.handleLeave)

	// playback
	wsrouter.Handle(mux, typeSyncCommand, c.handleSyncCommand)
	wsrouter.Handle(mux, typeReportCurrentTime, c.handleReportCurrentTime)

	return mux
}
