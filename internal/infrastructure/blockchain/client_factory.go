package blockchain

import (
	"fmt"
	"sync"
)

// ClientFactory caches one EVM client per RPC URL
type ClientFactory struct {
	evmClients map[string]Network
	newClient  func(rpcURL string) (Network, error)
	mu         sync.RWMutex
}

// NewClientFactory creates a new client factory
func NewClientFactory() *ClientFactory {
	return &ClientFactory{
		evmClients: make(map[string]Network),
		newClient: func(rpcURL string) (Network, error) {
			return NewEVMClient(rpcURL)
		},
	}
}

// GetEVMClient returns the Network for rpcURL, dialing it on first use
func (f *ClientFactory) GetEVMClient(rpcURL string) (Network, error) {
	f.mu.RLock()
	client, ok := f.evmClients[rpcURL]
	f.mu.RUnlock()
	if ok {
		return client, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double check
	if client, ok := f.evmClients[rpcURL]; ok {
		return client, nil
	}

	newClient, err := f.newClient(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create EVM client: %w", err)
	}

	f.evmClients[rpcURL] = newClient
	return newClient, nil
}

// RegisterEVMClient injects/overrides cached client for a specific rpcURL.
func (f *ClientFactory) RegisterEVMClient(rpcURL string, client Network) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evmClients[rpcURL] = client
}

// Close closes every cached client that holds a connection
func (f *ClientFactory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for url, c := range f.evmClients {
		if closer, ok := c.(interface{ Close() }); ok {
			closer.Close()
		}
		delete(f.evmClients, url)
	}
}
