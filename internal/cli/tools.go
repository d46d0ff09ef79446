package cli

import (
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/roach88/omniwire/internal/adapterparams"
	"github.com/roach88/omniwire/internal/config"
	"github.com/roach88/omniwire/internal/packet"
	"github.com/roach88/omniwire/internal/plan"
	"github.com/roach88/omniwire/internal/state"
)

// PacketView is the JSON form of a packet.
type PacketView struct {
	Nonce      uint64             `json:"nonce"`
	SrcChainID uint16             `json:"src_chain_id"`
	SrcAddress string             `json:"src_address"`
	DstChainID uint16             `json:"dst_chain_id"`
	DstAddress string             `json:"dst_address"`
	Payload    string             `json:"payload"`
	Hash       string             `json:"hash"`
	GUID       string             `json:"guid"`
	Bridge     *BridgePayloadView `json:"bridge,omitempty"`
}

// BridgePayloadView is the JSON form of a bridge payload.
type BridgePayloadView struct {
	Type           uint8  `json:"type"`
	RemoteCoinAddr string `json:"remote_coin_addr"`
	Receiver       string `json:"receiver"`
	AmountSD       uint64 `json:"amount_sd"`
	Unwrap         bool   `json:"unwrap"`
}

func packetView(p packet.Packet) PacketView {
	return PacketView{
		Nonce:      p.Nonce,
		SrcChainID: p.SrcChainID,
		SrcAddress: hexutil.Encode(p.SrcAddress),
		DstChainID: p.DstChainID,
		DstAddress: hexutil.Encode(p.DstAddress),
		Payload:    hexutil.Encode(p.Payload),
		Hash:       packet.Hash(p),
		GUID:       packet.GUID(p),
	}
}

func (v PacketView) write(w io.Writer) {
	fmt.Fprintf(w, "nonce:    %d\n", v.Nonce)
	fmt.Fprintf(w, "src:      %d %s\n", v.SrcChainID, v.SrcAddress)
	fmt.Fprintf(w, "dst:      %d %s\n", v.DstChainID, v.DstAddress)
	fmt.Fprintf(w, "payload:  %s\n", v.Payload)
	fmt.Fprintf(w, "hash:     %s\n", v.Hash)
	fmt.Fprintf(w, "guid:     %s\n", v.GUID)
	if b := v.Bridge; b != nil {
		fmt.Fprintf(w, "bridge:   type %d, coin %s, receiver %s, amount %d, unwrap %t\n",
			b.Type, b.RemoteCoinAddr, b.Receiver, b.AmountSD, b.Unwrap)
	}
}

func decodeHexArg(name, s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: %v", name, err))
	}
	return b, nil
}

// NewPacketCommand creates the packet command group.
func NewPacketCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packet",
		Short: "Encode and decode cross-chain packets",
	}

	var (
		p                          packet.Packet
		srcHex, dstHex, payloadHex string
	)
	encode := &cobra.Command{
		Use:           "encode",
		Short:         "Encode a packet from its fields",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			var err error
			if p.SrcAddress, err = decodeHexArg("--src", srcHex); err != nil {
				return err
			}
			if p.DstAddress, err = decodeHexArg("--dst", dstHex); err != nil {
				return err
			}
			if p.Payload, err = decodeHexArg("--payload", payloadHex); err != nil {
				return err
			}
			encoded := hexutil.Encode(packet.Encode(p))
			return formatter.Success(map[string]string{"packet": encoded, "hash": packet.Hash(p)}, func(w io.Writer) {
				fmt.Fprintln(w, encoded)
			})
		},
	}
	encode.Flags().Uint64Var(&p.Nonce, "nonce", 0, "packet nonce")
	encode.Flags().Uint16Var(&p.SrcChainID, "src-chain", 0, "source chain id")
	encode.Flags().StringVar(&srcHex, "src", "", "source address (0x hex)")
	encode.Flags().Uint16Var(&p.DstChainID, "dst-chain", 0, "destination chain id")
	encode.Flags().StringVar(&dstHex, "dst", "", "destination address (0x hex)")
	encode.Flags().StringVar(&payloadHex, "payload", "", "payload (0x hex)")

	var (
		srcWidth, dstWidth int
		bridge             bool
	)
	decode := &cobra.Command{
		Use:           "decode <0x-packet>",
		Short:         "Decode a packet",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			data, err := decodeHexArg("packet", args[0])
			if err != nil {
				return err
			}
			p, err := packet.DecodeWithSource(data, packet.FixedWidth(srcWidth), packet.FixedWidth(dstWidth))
			if err != nil {
				return formatter.Fail(ExitFailure, ErrCodeGeneric, "decode packet", err)
			}
			view := packetView(p)
			if bridge {
				bp, err := packet.DecodeBridgePayload(p.Payload)
				if err != nil {
					return formatter.Fail(ExitFailure, ErrCodeGeneric, "decode bridge payload", err)
				}
				view.Bridge = &BridgePayloadView{
					Type:           uint8(bp.Type),
					RemoteCoinAddr: hexutil.Encode(bp.RemoteCoinAddr),
					Receiver:       hexutil.Encode(bp.Receiver),
					AmountSD:       bp.AmountSD,
					Unwrap:         bp.Unwrap,
				}
			}
			return formatter.Success(view, view.write)
		},
	}
	decode.Flags().IntVar(&srcWidth, "src-width", packet.LocalAddressWidth, "source address width in bytes")
	decode.Flags().IntVar(&dstWidth, "dst-width", 20, "destination address width in bytes")
	decode.Flags().BoolVar(&bridge, "bridge", false, "also decode the payload as a bridge transfer")

	cmd.AddCommand(encode, decode)
	return cmd
}

// NewAdapterParamsCommand creates the adapter-params command group.
func NewAdapterParamsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adapter-params",
		Short: "Build and decode executor adapter params",
	}

	var (
		gas, amount uint64
		address     string
	)
	build := &cobra.Command{
		Use:           "build",
		Short:         "Encode adapter params; a non-zero --airdrop builds the airdrop variant",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			addr, err := decodeHexArg("--address", address)
			if err != nil {
				return err
			}
			encoded := hexutil.Encode(adapterparams.BuildAirdrop(gas, amount, addr))
			return formatter.Success(map[string]string{"adapter_params": encoded}, func(w io.Writer) {
				fmt.Fprintln(w, encoded)
			})
		},
	}
	build.Flags().Uint64Var(&gas, "gas", 0, "destination gas limit")
	build.Flags().Uint64Var(&amount, "airdrop", 0, "native amount to airdrop")
	build.Flags().StringVar(&address, "address", "", "airdrop receiver (0x hex)")

	decode := &cobra.Command{
		Use:           "decode <0x-params>",
		Short:         "Decode adapter params",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			data, err := decodeHexArg("params", args[0])
			if err != nil {
				return err
			}
			p, err := adapterparams.Decode(data)
			if err != nil {
				return formatter.Fail(ExitFailure, ErrCodeGeneric, "decode adapter params", err)
			}
			view := map[string]any{"tag": p.Tag, "gas_limit": p.GasLimit, "airdrop": p.Amount, "address": p.AddressHex()}
			return formatter.Success(view, func(w io.Writer) {
				fmt.Fprintf(w, "tag %d, gas %d", p.Tag, p.GasLimit)
				if p.Tag == adapterparams.TagAirdrop {
					fmt.Fprintf(w, ", airdrop %d to %s", p.Amount, p.AddressHex())
				}
				fmt.Fprintln(w)
			})
		},
	}

	cmd.AddCommand(build, decode)
	return cmd
}

// LimiterView is the JSON payload of limiter remaining.
type LimiterView struct {
	Symbol      string `json:"symbol"`
	CoinType    string `json:"coin_type"`
	Limited     bool   `json:"limited"`
	RemainingSD uint64 `json:"remaining_sd"`
	RemainingLD string `json:"remaining_ld"`
}

// NewLimiterCommand creates the limiter command group.
func NewLimiterCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limiter",
		Short: "Inspect bridge rate limiters on the local ledger",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "remaining <declaration> <symbol>",
		Short: "Show how much of a coin can still be bridged in the current window",
		Long: `Read the coin's limiter from the local ledger and decay its usage to the
ledger's current time. An unlimited coin reports no remaining amount.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			s, err := openSession(rootOpts, cmd, args[0], nil)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeDeclaration, "open", err)
			}
			defer s.Close()

			coinType := s.cfg.Addresses.CoinType(args[1])
			reader := state.NewReader(s.local, s.cfg.Addresses, state.WithTimeout(s.settings.Timeout), state.WithLogger(s.logger))
			reading, err := reader.LimiterRemaining(cmd.Context(), coinType)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeLedger, "read limiter", err)
			}

			view := LimiterView{Symbol: args[1], CoinType: coinType, Limited: reading.Limited, RemainingSD: reading.RemainingSD}
			if reading.RemainingLD != nil {
				view.RemainingLD = reading.RemainingLD.String()
			}
			return formatter.Success(view, func(w io.Writer) {
				if !view.Limited {
					fmt.Fprintf(w, "%s: not limited\n", view.Symbol)
					return
				}
				fmt.Fprintf(w, "%s: %d remaining (%s in local decimals)\n", view.Symbol, view.RemainingSD, view.RemainingLD)
			})
		},
	})
	return cmd
}

// FeeQuote is the JSON payload of fee quote.
type FeeQuote struct {
	ULN      string `json:"uln"`
	Executor string `json:"executor"`
	Total    string `json:"total"`
}

// NewFeeCommand creates the fee command group.
func NewFeeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fee",
		Short: "Quote messaging fees",
	}

	var (
		relayer                             config.RelayerFee
		oracleFee, payloadSize, treasuryBps uint64
		params                              string
		executor                            adapterparams.ExecutorFee
	)
	quote := &cobra.Command{
		Use:   "quote",
		Short: "Quote the fee of one message",
		Long: `Quote the fee of one message: the ULN fee (relayer and oracle, plus the
treasury share) and the executor fee for the adapter params.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			raw, err := decodeHexArg("--adapter-params", params)
			if err != nil {
				return err
			}
			uln := plan.QuoteULNFee(relayer, oracleFee, payloadSize, treasuryBps)
			exec, err := adapterparams.QuoteExecutorFee(raw, executor)
			if err != nil {
				return formatter.Fail(ExitFailure, ErrCodeGeneric, "quote executor fee", err)
			}
			total := new(big.Int).Add(uln, exec)
			q := FeeQuote{ULN: uln.String(), Executor: exec.String(), Total: total.String()}
			return formatter.Success(q, func(w io.Writer) {
				fmt.Fprintf(w, "uln:      %s\n", q.ULN)
				fmt.Fprintf(w, "executor: %s\n", q.Executor)
				fmt.Fprintf(w, "total:    %s\n", q.Total)
			})
		},
	}
	f := quote.Flags()
	f.Uint64Var(&relayer.BaseFee, "base-fee", 0, "relayer base fee")
	f.Uint64Var(&relayer.FeePerByte, "fee-per-byte", 0, "relayer fee per payload byte")
	f.Uint64Var(&oracleFee, "oracle-fee", 0, "oracle fee")
	f.Uint64Var(&payloadSize, "payload-size", 0, "payload size in bytes")
	f.Uint64Var(&treasuryBps, "treasury-bps", 0, "treasury share in basis points")
	f.StringVar(&params, "adapter-params", hexutil.Encode(adapterparams.BuildDefault(200_000)), "adapter params (0x hex)")
	f.Uint64Var(&executor.AirdropAmtCap, "airdrop-cap", 0, "executor airdrop cap")
	f.Uint64Var(&executor.PriceRatio, "price-ratio", adapterparams.PriceRatioDenominator, "executor price ratio, scaled by 1e10")
	f.Uint64Var(&executor.GasPrice, "gas-price", 0, "destination gas price")

	gas := &cobra.Command{
		Use:           "gas <measured-gas>",
		Short:         "Add the safety headroom to a measured gas amount",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			measured, ok := new(big.Int).SetString(args[0], 10)
			if !ok || !measured.IsUint64() {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid gas amount %q", args[0]))
			}
			limit := adapterparams.ApplyGasLimitSafety(measured.Uint64())
			return formatter.Success(map[string]string{"gas_limit": limit.String()}, func(w io.Writer) {
				fmt.Fprintln(w, limit.String())
			})
		},
	}

	cmd.AddCommand(quote, gas)
	return cmd
}
