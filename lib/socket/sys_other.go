//go:build !linux

package socket

import "net/netip"

// defaultSys reports ErrUnsupportedPlatform for every call
var defaultSys sysCalls = unsupportedSys{}

type unsupportedSys struct{}

func (unsupportedSys) socket(Family) (int, error)        { return -1, ErrUnsupportedPlatform }
func (unsupportedSys) connect(int, netip.AddrPort) error { return ErrUnsupportedPlatform }
func (unsupportedSys) close(int) error                   { return nil }
func (unsupportedSys) setOpt(int, sockOpt, int) error    { return ErrUnsupportedPlatform }
func (unsupportedSys) setNonblock(int) error             { return ErrUnsupportedPlatform }
func (unsupportedSys) socketError(int) error             { return ErrUnsupportedPlatform }
func (unsupportedSys) poll(int, bool, int) (bool, error) { return false, ErrUnsupportedPlatform }
func (unsupportedSys) send(int, []byte) (int, error)     { return 0, ErrUnsupportedPlatform }
func (unsupportedSys) recv(int, []byte) (int, error)     { return 0, ErrUnsupportedPlatform }
func (unsupportedSys) inProgress(error) bool             { return false }
func (unsupportedSys) wouldBlock(error) bool             { return false }
func (unsupportedSys) interrupted(error) bool            { return false }
