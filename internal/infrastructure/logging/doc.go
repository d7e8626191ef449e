// Package logging builds the zap logger shared by the coordinator and page
// hosts.
//
// Production writes JSON; development writes coloured console lines at
// debug. Components take a plain *zap.Logger (nil means silent, see OrNop)
// and are handed tagged children:
//
//	logger := logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
//	log := logger.Component("coordinator")
//	log.Info("tab attached", zap.String("tab", string(tabID)))
//
// Mod console output goes through Console, which keeps the mod id on every
// line.
package logging
