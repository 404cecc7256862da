package solana

import (
	"fmt"
	"net/url"
)

type Environment string

const (
	EnvironmentDev  Environment = "https://api.devnet.solana.com"
	EnvironmentTest Environment = "https://api.testnet.solana.com"
	EnvironmentProd Environment = "https://api.mainnet-beta.solana.com"
)

const explorerBaseURL = "https://explorer.solana.com"

// Cluster returns the explorer cluster name of a well known environment, or
// "custom" for any other endpoint.
func (e Environment) Cluster() string {
	switch e {
	case EnvironmentDev:
		return "devnet"
	case EnvironmentTest:
		return "testnet"
	case EnvironmentProd:
		return "mainnet-beta"
	}
	return "custom"
}

// ExplorerTxURL links to a transaction on the Solana explorer.
func ExplorerTxURL(sig Signature, cluster string) string {
	return explorerURL("tx", sig.String(), cluster)
}

// ExplorerAddressURL links to an account on the Solana explorer.
func ExplorerAddressURL(address string, cluster string) string {
	return explorerURL("address", address, cluster)
}

func explorerURL(kind, id, cluster string) string {
	u := fmt.Sprintf("%s/%s/%s", explorerBaseURL, kind, url.PathEscape(id))
	if cluster == "" || cluster == EnvironmentProd.Cluster() {
		return u
	}
	return u + "?cluster=" + url.QueryEscape(cluster)
}
