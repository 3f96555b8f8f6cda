// Package peerlink: peer description (hostname, MAC, vendor).
package peerlink

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// describeWorkers bounds concurrent host descriptions; each one opens
// several UDP sockets.
const describeWorkers = 32

// Describe resolves hostname, MAC address and vendor for each IP.
// Results are in input order. Lookup failures are recorded per component
// in PeerInfo.Errors and never fail the batch.
func (n *Node) Describe(ctx context.Context, ips []string) []*PeerInfo {
	if len(ips) == 0 {
		return nil
	}
	debugLog(ComponentNode, "describing %d hosts", len(ips))

	results := make([]*PeerInfo, len(ips))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(describeWorkers)
	for i, ip := range ips {
		i, ip := i, ip
		g.Go(func() error {
			results[i] = n.describeOne(gctx, ip)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (n *Node) describeOne(ctx context.Context, ip string) *PeerInfo {
	info := &PeerInfo{IP: ip, Errors: make(map[Component]error)}
	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		res, err := n.names.LookupAddr(ctx, ip)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			info.Errors[ComponentHostname] = err
			return
		}
		info.Hostname = res.Hostname
		info.HostnameSource = string(res.Source)
	}()
	go func() {
		defer wg.Done()
		res, err := n.macs.LookupAddr(ctx, ip)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			info.Errors[ComponentARP] = err
			return
		}
		info.MAC = res.MACAddress
	}()
	wg.Wait()

	if info.MAC != "" && n.vendors != nil {
		info.Vendor = n.vendors.LookupName(info.MAC)
	}
	debugLogVerbose(ComponentNode, "%s: hostname=%q mac=%q vendor=%q", ip, info.Hostname, info.MAC, info.Vendor)
	return info
}
