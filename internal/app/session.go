package app

import (
	"fmt"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/daly-bms/internal/config"
	"github.com/taoyao-code/daly-bms/internal/metrics"
	"github.com/taoyao-code/daly-bms/internal/protocol/daly"
	"github.com/taoyao-code/daly-bms/internal/session"
)

// NewSession 按配置选定 profile、字段选择与命令节流，构造设备会话
func NewSession(cfg cfgpkg.BMSConfig, appm *metrics.AppMetrics, logger *zap.Logger) (*session.Session, error) {
	profile, err := daly.LookupProfile(cfg.Profile)
	if err != nil {
		return nil, err
	}

	var opts []daly.Option
	if cfg.AlarmDelimiter != "" {
		opts = append(opts, daly.WithAlarmDelimiter(cfg.AlarmDelimiter))
	}
	if len(cfg.Fields) > 0 {
		sel, err := daly.NewFieldSelector(cfg.Fields)
		if err != nil {
			return nil, fmt.Errorf("bms.fields: %w", err)
		}
		opts = append(opts, daly.WithFields(sel))
	}

	s := session.New(cfg.Device, daly.NewEngine(profile, opts...),
		session.WithLogger(logger),
		session.WithMetrics(appm),
		session.WithPacer(session.NewPacer(cfg.CommandRate, cfg.CommandBurst)),
	)
	logger.Info("bms session initialized",
		zap.String("device", cfg.Device),
		zap.String("profile", profile.Name),
		zap.Strings("fields", cfg.Fields),
		zap.Float64("command_rate", cfg.CommandRate))
	return s, nil
}
