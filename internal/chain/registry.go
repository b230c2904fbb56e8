package chain

import (
	"net/http"

	"github.com/coinpay/backend/internal/config"
	"go.uber.org/zap"
)

const usdcDecimals = 6

// NewRegistryFromConfig registers a provider for every chain the config has an
// endpoint for. USDC variants read from their parent chain RPC. tonAPI may be
// nil, in which case TON stays unsupported.
func NewRegistryFromConfig(cfg *config.Config, httpClient *http.Client, tonAPI TONAccountAPI, log *zap.Logger) *Registry {
	r := NewRegistry()

	if cfg.BitcoinAPIURL != "" {
		r.Register(BTC, FamilyUTXO, NewUTXOProvider(cfg.BitcoinAPIURL, httpClient))
	}
	r.Register(BCH, FamilyUTXO, NewBCHProvider(BCHEndpoints{
		Primary:   cfg.BCHPrimaryAPIURL,
		Secondary: cfg.BCHSecondaryAPIURL,
		Tertiary:  cfg.BCHTertiaryAPIURL,
	}, httpClient, log.Named("bch")))

	evm := map[string]string{ETH: cfg.EthereumRPCURL, POL: cfg.PolygonRPCURL, BNB: cfg.BNBRPCURL}
	for ch, url := range evm {
		if url != "" {
			r.Register(ch, FamilyEVM, NewEVMProvider(url, httpClient))
		}
	}
	registerUSDC(r, USDCETH, cfg.EthereumRPCURL, cfg.USDCEthereumContract, httpClient)
	registerUSDC(r, USDCPOL, cfg.PolygonRPCURL, cfg.USDCPolygonContract, httpClient)

	if cfg.SolanaRPCURL != "" {
		sol := NewSolanaProvider(cfg.SolanaRPCURL, httpClient)
		r.Register(SOL, FamilyAccount, sol)
		r.Register(USDCSOL, FamilyAccount, sol)
	}
	if cfg.XRPRPCURL != "" {
		r.Register(XRP, FamilyAccount, NewXRPProvider(cfg.XRPRPCURL, httpClient))
	}
	if cfg.BlockfrostAPIURL != "" && cfg.BlockfrostProjectID != "" {
		r.Register(ADA, FamilyUTXO, NewCardanoProvider(cfg.BlockfrostAPIURL, cfg.BlockfrostProjectID, httpClient))
	}
	if tonAPI != nil {
		r.Register(TON, FamilyAccount, NewTONProvider(tonAPI))
	}
	return r
}

func registerUSDC(r *Registry, chain, rpcURL, contract string, httpClient *http.Client) {
	if rpcURL == "" {
		return
	}
	p := NewEVMProvider(rpcURL, httpClient)
	if contract != "" {
		p = p.WithToken(TokenContract{Address: contract, Decimals: usdcDecimals})
	}
	r.Register(chain, FamilyEVM, p)
}
