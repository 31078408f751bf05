// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/luxfi/xcomm"
	"github.com/luxfi/xcomm/config"
	"github.com/luxfi/xcomm/signer"
	"github.com/spf13/cobra"
)

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Compute the hash of a message",
	Long:  `Compute keccak256(abi.encode(payload, sourceChainId, messageNumber)), the hash an oracle commits for a message.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		payloadHex, _ := cmd.Flags().GetString("payload")
		source, _ := cmd.Flags().GetUint64("source-chain")
		n, _ := cmd.Flags().GetUint64("message-number")

		payload, err := decodeHex(payloadHex)
		if err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		fmt.Println(xcomm.MessageHash(payload, xcomm.ChainID(source), n).Hex())
		return nil
	},
}

var feeCmd = &cobra.Command{
	Use:   "fee",
	Short: "Compute the fee of a message",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var fee config.FeeConfig
		fee.BaseFee, _ = cmd.Flags().GetString("base-fee")
		fee.TaxiMultiplier, _ = cmd.Flags().GetUint64("taxi-multiplier")
		fee.Scaling, _ = cmd.Flags().GetString("scaling")
		fee.Horizon, _ = cmd.Flags().GetUint16("horizon")
		finality, _ := cmd.Flags().GetUint16("finality")
		taxi, _ := cmd.Flags().GetBool("taxi")

		policy, err := fee.ToPolicy()
		if err != nil {
			return err
		}
		amount, err := policy.Fee(finality, taxi)
		if err != nil {
			return err
		}
		fmt.Println(amount.Dec())
		return nil
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode an OutboundMessage event",
	Long:  `Decode the hex-encoded data of an OutboundMessage event log.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dataHex, _ := cmd.Flags().GetString("data")

		data, err := decodeHex(dataHex)
		if err != nil {
			return fmt.Errorf("invalid hex data: %w", err)
		}
		m, err := xcomm.UnpackEvent(data)
		if err != nil {
			return err
		}
		return printJSON(m)
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an account key",
	RunE: func(*cobra.Command, []string) error {
		s, err := signer.GenerateLocalSigner()
		if err != nil {
			return err
		}
		return printJSON(map[string]string{
			"address":     s.Address().Hex(),
			"private-key": s.PrivateKeyHex(),
		})
	},
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign an API transaction",
	Long: `Sign a transaction for POST /v1/tx/<method>. The output is the request
body; the signer's address is the caller of the method.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		keyHex, _ := cmd.Flags().GetString("key")
		method, _ := cmd.Flags().GetString("method")
		params, _ := cmd.Flags().GetString("params")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		if keyHex == "" {
			keyHex = os.Getenv("XCOMM_ACCOUNT_PRIVATE_KEY")
		}
		s, err := signer.NewLocalSignerFromHex(keyHex)
		if err != nil {
			return err
		}
		if !json.Valid([]byte(params)) {
			return fmt.Errorf("params are not valid JSON")
		}
		req, err := signer.SignRequest(s, method, json.RawMessage(params), time.Now().Add(ttl))
		if err != nil {
			return err
		}
		return printJSON(req)
	},
}

func init() {
	hashCmd.Flags().String("payload", "", "Hex-encoded message payload")
	hashCmd.Flags().Uint64("source-chain", 0, "Source chain id")
	hashCmd.Flags().Uint64("message-number", 0, "Message number")
	_ = hashCmd.MarkFlagRequired("source-chain")
	_ = hashCmd.MarkFlagRequired("message-number")

	feeCmd.Flags().String("base-fee", "0", "Base fee as a decimal amount")
	feeCmd.Flags().Uint64("taxi-multiplier", 2, "Taxi fee multiplier")
	feeCmd.Flags().String("scaling", "linear", "Taxi fee scaling: linear, constant or inverse")
	feeCmd.Flags().Uint16("horizon", 0, "Horizon of the inverse scaling")
	feeCmd.Flags().Uint16("finality", 1, "Finality depth in blocks")
	feeCmd.Flags().Bool("taxi", false, "Price a taxi message")

	decodeCmd.Flags().String("data", "", "Hex-encoded event data")
	_ = decodeCmd.MarkFlagRequired("data")

	signCmd.Flags().String("key", "", "Hex-encoded private key (default $XCOMM_ACCOUNT_PRIVATE_KEY)")
	signCmd.Flags().String("method", "", "Method name, e.g. setLastBlock")
	signCmd.Flags().String("params", "{}", "JSON params of the method")
	signCmd.Flags().Duration("ttl", time.Minute, "How long the request stays valid")
	_ = signCmd.MarkFlagRequired("method")
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(xcomm.SanitizeHexString(s))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
