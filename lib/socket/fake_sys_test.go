package socket

import (
	"errors"
	"net/netip"
	"sync"
)

var (
	errFakePending     = errors.New("fake: operation in progress")
	errFakeWouldBlock  = errors.New("fake: would block")
	errFakeInterrupted = errors.New("fake: interrupted")
	errFakeRefused     = errors.New("fake: connection refused")
)

// fakeSys is an in-memory syscall table that records what the client does
type fakeSys struct {
	mu sync.Mutex

	nextFd  int
	open    map[int]bool
	closed  []int
	opts    map[int][]sockOpt
	dialed  []netip.AddrPort
	sockets int

	socketErr      error
	nonblockErr    error
	optErr         map[sockOpt]error
	connectFn      func(fd int, addr netip.AddrPort) error
	pollFn         func(fd int, read bool, timeoutMs int) (bool, error)
	socketErrorFn  func(fd int) error
	sendFn         func(fd int, p []byte) (int, error)
	recvFn         func(fd int, p []byte) (int, error)
	pollTimeoutsMs []int
}

func newFakeSys() *fakeSys {
	return &fakeSys{
		nextFd: 100,
		open:   make(map[int]bool),
		opts:   make(map[int][]sockOpt),
		optErr: make(map[sockOpt]error),
	}
}

func (f *fakeSys) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, o := range f.open {
		if o {
			n++
		}
	}
	return n
}

func (f *fakeSys) socket(Family) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.socketErr != nil {
		return -1, f.socketErr
	}
	fd := f.nextFd
	f.nextFd++
	f.sockets++
	f.open[fd] = true
	return fd, nil
}

func (f *fakeSys) connect(fd int, addr netip.AddrPort) error {
	f.mu.Lock()
	f.dialed = append(f.dialed, addr)
	fn := f.connectFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(fd, addr)
}

func (f *fakeSys) close(fd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open[fd] = false
	f.closed = append(f.closed, fd)
	return nil
}

func (f *fakeSys) setOpt(fd int, opt sockOpt, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opts[fd] = append(f.opts[fd], opt)
	return f.optErr[opt]
}

func (f *fakeSys) setNonblock(int) error {
	return f.nonblockErr
}

func (f *fakeSys) socketError(fd int) error {
	if f.socketErrorFn == nil {
		return nil
	}
	return f.socketErrorFn(fd)
}

func (f *fakeSys) poll(fd int, read bool, timeoutMs int) (bool, error) {
	f.mu.Lock()
	f.pollTimeoutsMs = append(f.pollTimeoutsMs, timeoutMs)
	fn := f.pollFn
	f.mu.Unlock()
	if fn == nil {
		return true, nil
	}
	return fn(fd, read, timeoutMs)
}

func (f *fakeSys) send(fd int, p []byte) (int, error) {
	if f.sendFn == nil {
		return len(p), nil
	}
	return f.sendFn(fd, p)
}

func (f *fakeSys) recv(fd int, p []byte) (int, error) {
	if f.recvFn == nil {
		return 0, nil
	}
	return f.recvFn(fd, p)
}

func (f *fakeSys) inProgress(err error) bool {
	return errors.Is(err, errFakePending) || errors.Is(err, errFakeInterrupted)
}

func (f *fakeSys) wouldBlock(err error) bool {
	return errors.Is(err, errFakeWouldBlock)
}

func (f *fakeSys) interrupted(err error) bool {
	return errors.Is(err, errFakeInterrupted)
}

// testCandidates creates n IPv4 loopback candidates on consecutive ports
func testCandidates(n int) StaticResolver {
	candidates := make(StaticResolver, n)
	for i := range candidates {
		candidates[i] = NewCandidate(netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), uint16(9000+i)))
	}
	return candidates
}

// newFakeClient creates a client on top of a fake syscall table
func newFakeClient(sys *fakeSys, resolver IResolver) *TCPClient {
	opts := DefaultOptions()
	opts.Resolver = resolver
	return newTCPClient(opts, sys)
}
