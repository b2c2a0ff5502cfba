// Package netlink waits for the glove's network link to come up.
package netlink

import (
	"context"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// Link reports association state and the assigned address.
type Link interface {
	Name() string
	Status() (up bool, addr net.IP, err error)
}

// Interface is a Link backed by a host network interface.
type Interface struct {
	Iface string
}

func (i Interface) Name() string { return i.Iface }

// Status is up once the interface is up and carries an IPv4 address.
func (i Interface) Status() (bool, net.IP, error) {
	ifi, err := net.InterfaceByName(i.Iface)
	if err != nil {
		return false, nil, err
	}
	if ifi.Flags&net.FlagUp == 0 {
		return false, nil, nil
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return false, nil, err
	}
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok {
			if ip4 := ipn.IP.To4(); ip4 != nil {
				return true, ip4, nil
			}
		}
	}
	return false, nil, nil
}

// Wait polls link every poll interval until it is up and returns its
// address. Like bus discovery, it blocks until the context ends;
// onWaiting (may be nil) is called after each unsuccessful poll.
func Wait(ctx context.Context, link Link, poll time.Duration, onWaiting func(attempt int)) (net.IP, error) {
	log.Printf("waiting for network link %s", link.Name())
	for attempt := 1; ; attempt++ {
		up, addr, err := link.Status()
		if err != nil {
			log.WithField("attempt", attempt).Debugf("link %s: %v", link.Name(), err)
		}
		if up {
			log.Printf("network link %s up, address %s", link.Name(), addr)
			return addr, nil
		}
		if onWaiting != nil {
			onWaiting(attempt)
		}
		t := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("link %s: %w", link.Name(), ctx.Err())
		case <-t.C:
		}
	}
}
