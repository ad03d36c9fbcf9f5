package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ytc/internal/broadcast"
)

var errUsage = errors.New("usage error")

func usageErrorf(format string, a ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, a...))
}

// optBool is a boolean flag that remembers whether it was given, so
// "-auto-start" and "-auto-start=false" differ from leaving it out.
type optBool struct{ v broadcast.Optional[bool] }

func (o *optBool) String() string {
	if v, ok := o.v.Get(); ok {
		return strconv.FormatBool(v)
	}
	return ""
}

func (o *optBool) Set(s string) error {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	o.v = broadcast.Some(b)
	return nil
}

func (o *optBool) IsBoolFlag() bool { return true }

// commonFlags are accepted by every command that talks to YouTube.
type commonFlags struct {
	user    string
	secrets string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	const (
		userHelp    = "YouTube user id; keys the cached token"
		secretsHelp = "client secrets file for OAuth"
	)
	fs.StringVar(&c.user, "u", "", userHelp)
	fs.StringVar(&c.user, "user", "", userHelp)
	fs.StringVar(&c.secrets, "c", "", secretsHelp)
	fs.StringVar(&c.secrets, "client-secrets", "", secretsHelp)
}

func stringFlag(fs *flag.FlagSet, short, long, def, usage string) *string {
	p := new(string)
	fs.StringVar(p, short, def, usage)
	fs.StringVar(p, long, def, usage)
	return p
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("ytc "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parse turns flag errors into usage errors. -h yields flag.ErrHelp.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageErrorf("%v", err)
	}
	if fs.NArg() > 0 {
		return usageErrorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return nil
}

// visited lists the flags set on the command line as name=value, for the
// debug echo of each command.
func visited(fs *flag.FlagSet) []string {
	var out []string
	fs.Visit(func(f *flag.Flag) {
		out = append(out, f.Name+"="+f.Value.String())
	})
	return out
}
