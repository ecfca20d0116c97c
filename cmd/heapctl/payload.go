package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/sixstars/starctf2022/heap/alloc"
)

var (
	payloadEncoding string
	readLen         int
	readHex         bool
)

func init() {
	write := newWriteCmd()
	write.Flags().StringVar(&payloadEncoding, "encoding", "utf8", "Text encoding (utf8, latin1, cp1252)")
	rootCmd.AddCommand(write)

	read := newReadCmd()
	read.Flags().StringVar(&payloadEncoding, "encoding", "utf8", "Text encoding (utf8, latin1, cp1252)")
	read.Flags().IntVar(&readLen, "len", 0, "Bytes to read (0 = whole payload)")
	read.Flags().BoolVar(&readHex, "hex", false, "Print the payload as hex")
	rootCmd.AddCommand(read)
}

func newWriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write <image> <addr> <text>",
		Short: "Write text into an allocated payload",
		Long: `The write command stores text at the start of the payload at addr.
The text must fit in the chunk's payload.

Example:
  heapctl write kheap.img 0x200148 "init task"
  heapctl write kheap.img 0x200148 "café" --encoding latin1`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(args)
		},
	}
}

func newReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <image> <addr>",
		Short: "Print an allocated payload",
		Long: `The read command prints the payload at addr as text, up to the first NUL
byte, or as hex with --hex.

Example:
  heapctl read kheap.img 0x200148
  heapctl read kheap.img 0x200148 --hex --len 16`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(args)
		},
	}
}

// textEncoding maps an --encoding name to an x/text encoding; nil means UTF-8.
func textEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(name) {
	case "", "utf8", "utf-8":
		return nil, nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "cp1252", "windows-1252":
		return charmap.Windows1252, nil
	}
	return nil, fmt.Errorf("unknown encoding %q (want utf8, latin1 or cp1252)", name)
}

func encodeText(text, enc string) ([]byte, error) {
	e, err := textEncoding(enc)
	if err != nil || e == nil {
		return []byte(text), err
	}
	b, err := e.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("text not representable in %s: %w", enc, err)
	}
	return b, nil
}

func decodeText(b []byte, enc string) (string, error) {
	e, err := textEncoding(enc)
	if err != nil || e == nil {
		return string(b), err
	}
	out, err := e.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func runWrite(args []string) error {
	addr, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	data, err := encodeText(args[2], payloadEncoding)
	if err != nil {
		return err
	}

	s, err := openSession(args[0])
	if err != nil {
		return err
	}
	buf := s.h.Payload(alloc.Ptr(addr))
	switch {
	case buf == nil:
		err = fmt.Errorf("%w: 0x%x is not an allocated payload", alloc.ErrBadPointer, addr)
	case len(data) > len(buf):
		err = fmt.Errorf("text of %d bytes does not fit payload of %d bytes", len(data), len(buf))
	default:
		copy(buf, data)
		s.dt.Add(s.a.Offset(addr), len(data))
	}
	if cerr := s.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	printInfo("Wrote %d byte(s) at 0x%x\n", len(data), addr)
	return nil
}

func runRead(args []string) error {
	addr, err := parseAddr(args[1])
	if err != nil {
		return err
	}

	s, err := openSession(args[0])
	if err != nil {
		return err
	}
	defer s.close()

	buf := s.h.Payload(alloc.Ptr(addr))
	if buf == nil {
		return fmt.Errorf("%w: 0x%x is not an allocated payload", alloc.ErrBadPointer, addr)
	}
	if readLen > 0 && readLen < len(buf) {
		buf = buf[:readLen]
	}

	if readHex {
		if jsonOut {
			return printJSON(map[string]any{"addr": formatPtr(alloc.Ptr(addr)), "hex": hex.EncodeToString(buf)})
		}
		printInfo("%s", hex.Dump(buf))
		return nil
	}

	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	text, err := decodeText(buf, payloadEncoding)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(map[string]any{"addr": formatPtr(alloc.Ptr(addr)), "text": text})
	}
	printInfo("%s\n", text)
	return nil
}
