package refpeer

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// MaxFileNameLength bounds the file name carried in a file transfer header.
const MaxFileNameLength = 255

var (
	ErrListenAndTarget       = errors.New("Can't set both listen and target addresses!")
	ErrNoAddress             = errors.New("Must set either listen or target address!")
	ErrDestinationWithTarget = errors.New("Cannot use -destination with -target; Did you mean -file?")
	ErrFileWithListen        = errors.New("Cannot use -file with -listen; Did you mean -destination?")
)

// Options is the parsed command line of one peer.
type Options struct {
	Listen      string
	Target      string
	Port        int
	File        string
	Destination string
	Password    string

	// Announce prints "Listening on <addr>" once the listener is bound.
	Announce bool
	// LogLevel enables debug logging to stderr after the handshake text.
	LogLevel string
}

// IsListener reports whether the options describe the listening side.
func (o Options) IsListener() bool {
	return o.Listen != ""
}

// ParseArgs reads "-name:value" arguments. Unknown names are ignored.
func ParseArgs(args []string) (Options, error) {
	var o Options
	for _, arg := range args {
		name, value, ok := strings.Cut(strings.TrimLeft(arg, "-"), ":")
		if !ok || !strings.HasPrefix(arg, "-") {
			continue
		}
		switch name {
		case "listen":
			o.Listen = value
		case "target":
			o.Target = value
		case "port":
			port, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return Options{}, fmt.Errorf("invalid port %q", value)
			}
			o.Port = int(port)
		case "file":
			o.File = value
		case "destination":
			o.Destination = value
		case "password":
			o.Password = value
		case "announce":
			o.Announce = value != "" && value != "0"
		case "log":
			o.LogLevel = value
		}
	}
	return o, o.Validate()
}

// Validate applies the tool's argument rules.
func (o Options) Validate() error {
	switch {
	case o.Listen != "" && o.Target != "":
		return ErrListenAndTarget
	case o.Listen == "" && o.Target == "":
		return ErrNoAddress
	case o.Target != "" && o.Destination != "":
		return ErrDestinationWithTarget
	case o.Listen != "" && o.File != "":
		return ErrFileWithListen
	}

	if o.File != "" {
		st, err := os.Stat(o.File)
		if err != nil {
			return fmt.Errorf("%s doesn't exist!", o.File)
		}
		if !st.Mode().IsRegular() {
			return fmt.Errorf("%s must be a file, or file-like!", o.File)
		}
	}
	if o.Destination != "" {
		st, err := os.Stat(o.Destination)
		if err != nil {
			return fmt.Errorf("%s doesn't exist!", o.Destination)
		}
		if !st.IsDir() {
			return fmt.Errorf("%s must be a directory!", o.Destination)
		}
	}
	return nil
}

// ListenAddr is the UDP address the listener binds. "*" binds every
// interface.
func (o Options) ListenAddr() string {
	host := o.Listen
	if host == "*" {
		host = ""
	}
	return net.JoinHostPort(host, strconv.Itoa(o.Port))
}

// TargetAddr is the UDP address the connector dials.
func (o Options) TargetAddr() string {
	return net.JoinHostPort(o.Target, strconv.Itoa(o.Port))
}
