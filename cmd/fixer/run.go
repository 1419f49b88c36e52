package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"linefixer/internal/archive"
	"linefixer/internal/config"
	"linefixer/internal/coordinator"
	"linefixer/internal/driver"
	"linefixer/internal/logging"
	"linefixer/internal/provider"
	"linefixer/internal/usage"
)

// mode resolves --scan-only / --fix. Neither flag means scan.
func (o *cliOptions) mode() (driver.Mode, error) {
	switch {
	case o.scanOnly && o.fix:
		return "", &config.Error{Msg: "--scan-only and --fix are mutually exclusive"}
	case o.apply && !o.fix:
		return "", &config.Error{Msg: "--apply requires --fix"}
	case o.fix:
		return driver.ModeFix, nil
	default:
		return driver.ModeScan, nil
	}
}

func (o *cliOptions) runRoot(cmd *cobra.Command, args []string) error {
	mode, err := o.mode()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	log := logging.Get(logging.CategoryBoot)

	tracker := usage.NewTracker()
	ctx = usage.NewContext(ctx, tracker)

	var fixer driver.LineFixer
	if mode == driver.ModeFix {
		roster, err := provider.BuildRoster(ctx, o.cfg, provider.BuildOptions{
			Usage:  tracker,
			Logger: logging.Get(logging.CategoryAPI),
		})
		if err != nil {
			return &config.Error{Field: "providers", Err: err}
		}
		log.Info("providers configured",
			zap.Any("roles", roster.Roles()),
			zap.Any("conclave", o.cfg.ConclaveMembers()),
			zap.Duration("budget", o.cfg.GetBudget()))
		if len(roster.Roles()) == 0 {
			log.Warn("no provider roles configured, only the pattern fixer will run")
		}
		fixer = coordinator.New(roster, coordinator.Options{
			Budget:          o.cfg.GetBudget(),
			StyleRules:      o.cfg.StyleRules,
			AllowHardBreak:  o.cfg.Pattern.AllowHardBreak,
			ConclaveMembers: o.cfg.ConclaveMembers(),
		})
	}

	d := driver.New(fixer, archive.New(o.cfg.ArchiveDir))
	rep, runErr := d.Run(ctx, driver.Options{
		Mode:         mode,
		Paths:        args,
		Recursive:    o.recursive,
		Include:      o.cfg.Include,
		MaxWidth:     o.cfg.MaxWidth,
		Apply:        o.apply,
		LanguageHint: o.cfg.LanguageHint,
	})
	if rep == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if o.jsonOutput {
		if err := writeJSON(out, rep); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	} else {
		newTextRenderer(out).report(rep)
	}

	if runErr != nil {
		return runErr
	}
	if !rep.Clean() {
		if mode == driver.ModeScan {
			return &dirtyError{msg: fmt.Sprintf("%d violations", rep.Summary.LinesOverLimit)}
		}
		return &dirtyError{msg: fmt.Sprintf("%d fixes failed", rep.Summary.Failed)}
	}
	return nil
}
