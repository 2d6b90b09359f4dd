package main

import (
	"github.com/go-go-golems/recast/pkg/config"
	"github.com/spf13/pflag"
)

func addTransformFlags(fs *pflag.FlagSet) {
	fs.String("remove-keys", "", "Comma-separated keys deleted from the output record")
	fs.String("keep-keys", "", "Comma-separated keys copied from the input record (requires --renew-record)")
	fs.Bool("renew-record", false, "Start the output from an empty record instead of a copy of the input")
	fs.String("renew-time-key", "", "Record field whose value overrides the event timestamp")
	fs.Bool("enable-ruby", false, "Use the sandboxed expression strategy for ${...} templates")
	fs.Bool("auto-typecast", false, "Preserve native types for single-placeholder template fields")
	fs.String("eval-timeout", "", "Per-expression evaluation timeout for the sandboxed strategy (e.g. 50ms)")
}

// applyTransformFlags overlays explicitly set flags on top of the file
// configuration.
func applyTransformFlags(fs *pflag.FlagSet, tr *config.Transform) error {
	if fs.Changed("remove-keys") {
		v, err := fs.GetString("remove-keys")
		if err != nil {
			return err
		}
		tr.RemoveKeys = v
	}
	if fs.Changed("keep-keys") {
		v, err := fs.GetString("keep-keys")
		if err != nil {
			return err
		}
		tr.KeepKeys = v
	}
	if fs.Changed("renew-record") {
		v, err := fs.GetBool("renew-record")
		if err != nil {
			return err
		}
		tr.RenewRecord = v
	}
	if fs.Changed("renew-time-key") {
		v, err := fs.GetString("renew-time-key")
		if err != nil {
			return err
		}
		tr.RenewTimeKey = v
	}
	if fs.Changed("enable-ruby") {
		v, err := fs.GetBool("enable-ruby")
		if err != nil {
			return err
		}
		tr.EnableRuby = v
	}
	if fs.Changed("auto-typecast") {
		v, err := fs.GetBool("auto-typecast")
		if err != nil {
			return err
		}
		tr.AutoTypecast = v
	}
	if fs.Changed("eval-timeout") {
		v, err := fs.GetString("eval-timeout")
		if err != nil {
			return err
		}
		tr.EvalTimeout = v
	}
	return nil
}
