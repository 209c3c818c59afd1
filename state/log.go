package state

import (
	cosmoslog "cosmossdk.io/log"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// treeLogger lets the iavl tree write through the node's cometbft logger.
type treeLogger struct {
	cmtlog.Logger
}

func newTreeLogger(lg cmtlog.Logger) cosmoslog.Logger {
	return treeLogger{lg.With("module", "iavl")}
}

func (l treeLogger) With(keyVals ...any) cosmoslog.Logger {
	return treeLogger{l.Logger.With(keyVals...)}
}

func (l treeLogger) Impl() any {
	return l.Logger
}
