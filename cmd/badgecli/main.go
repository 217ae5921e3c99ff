// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/luxfi/badge"
	"github.com/luxfi/badge/attest"
	"github.com/luxfi/badge/service"
	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/ids"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildDate = "unknown"

	apiURL  string
	keyHex  string
	keyFile string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "badgecli",
	Short: "Badge registry CLI",
	Long: `badgecli talks to a badged daemon: it lists the voter set, submits
mint and invalidation approvals, and queries issued badges.`,
	Version: fmt.Sprintf("%s (built %s)", version, buildDate),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "Base URL of the badged API")

	approveMintCmd.Flags().StringVar(&keyHex, "key", "", "Hex-encoded BLS secret key for attestation")
	approveMintCmd.Flags().StringVar(&keyFile, "key-file", "", "File containing the hex-encoded BLS secret key")
	approveInvalidateCmd.Flags().StringVar(&keyHex, "key", "", "Hex-encoded BLS secret key for attestation")
	approveInvalidateCmd.Flags().StringVar(&keyFile, "key-file", "", "File containing the hex-encoded BLS secret key")

	rootCmd.AddCommand(votersCmd)
	rootCmd.AddCommand(approveMintCmd)
	rootCmd.AddCommand(approveInvalidateCmd)
	rootCmd.AddCommand(badgeCmd)
	rootCmd.AddCommand(badgesCmd)
	rootCmd.AddCommand(keygenCmd)
}

var votersCmd = &cobra.Command{
	Use:   "voters",
	Short: "List the voter set",
	Run: func(cmd *cobra.Command, args []string) {
		var resp service.VotersResponse
		if err := getJSON(service.VotersPath, &resp); err != nil {
			fatalf("failed to fetch voters: %v", err)
		}
		fmt.Printf("Threshold: %d\n", resp.Threshold)
		for i, v := range resp.Voters {
			fmt.Printf("  %d: %s\n", i, v)
		}
	},
}

var approveMintCmd = &cobra.Command{
	Use:   "approve-mint <voter> <owner>",
	Short: "Approve issuing a new badge to an owner",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		voter, err := ids.ShortFromString(args[0])
		if err != nil {
			fatalf("invalid voter identity: %v", err)
		}
		owner, err := ids.ShortFromString(args[1])
		if err != nil {
			fatalf("invalid owner identity: %v", err)
		}

		req := service.ApproveMintRequest{
			Voter: args[0],
			Owner: args[1],
		}
		if sk := loadKey(); sk != nil {
			sig, err := attest.Sign(sk, attest.MintApproval(voter, owner))
			if err != nil {
				fatalf("failed to sign approval: %v", err)
			}
			req.Signature = hex.EncodeToString(sig)
		}

		var resp service.ApproveMintResponse
		if err := postJSON(service.ApproveMintPath, req, &resp); err != nil {
			fatalf("approval failed: %v", err)
		}
		if resp.Issued {
			fmt.Printf("Badge %d issued to %s\n", resp.TokenID, args[1])
		} else {
			fmt.Printf("Approval recorded: %d/%d\n", resp.Approvals, resp.Threshold)
		}
	},
}

var approveInvalidateCmd = &cobra.Command{
	Use:   "approve-invalidate <voter> <token-id>",
	Short: "Approve invalidating a badge",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		voter, err := ids.ShortFromString(args[0])
		if err != nil {
			fatalf("invalid voter identity: %v", err)
		}
		tokenID, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			fatalf("invalid token id: %v", err)
		}

		req := service.ApproveInvalidateRequest{
			Voter:   args[0],
			TokenID: tokenID,
		}
		if sk := loadKey(); sk != nil {
			sig, err := attest.Sign(sk, attest.InvalidateApproval(voter, badge.TokenID(tokenID)))
			if err != nil {
				fatalf("failed to sign approval: %v", err)
			}
			req.Signature = hex.EncodeToString(sig)
		}

		var resp service.ApproveInvalidateResponse
		if err := postJSON(service.ApproveInvalidatePath, req, &resp); err != nil {
			fatalf("approval failed: %v", err)
		}
		if resp.Invalidated {
			fmt.Printf("Badge %d invalidated\n", tokenID)
		} else {
			fmt.Printf("Approval recorded: %d/%d\n", resp.Approvals, resp.Threshold)
		}
	},
}

var badgeCmd = &cobra.Command{
	Use:   "badge <token-id>",
	Short: "Show a badge record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tokenID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			fatalf("invalid token id: %v", err)
		}

		var resp service.BadgeResponse
		if err := getJSON(fmt.Sprintf("%s?id=%d", service.BadgePath, tokenID), &resp); err != nil {
			fatalf("failed to fetch badge: %v", err)
		}
		fmt.Printf("Token:   %d\n", resp.TokenID)
		fmt.Printf("Owner:   %s\n", resp.Owner)
		fmt.Printf("Valid:   %t\n", resp.Valid)
		fmt.Printf("Issued:  %s\n", resp.IssuedAt)
		if resp.URI != "" {
			fmt.Printf("URI:     %s\n", resp.URI)
		}
		if resp.InvalidatedAt != "" {
			fmt.Printf("Invalidated: %s\n", resp.InvalidatedAt)
		}
	},
}

var badgesCmd = &cobra.Command{
	Use:   "badges <owner>",
	Short: "List an owner's badges",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var resp service.BadgesResponse
		if err := getJSON(fmt.Sprintf("%s?owner=%s", service.BadgesPath, args[0]), &resp); err != nil {
			fatalf("failed to fetch badges: %v", err)
		}
		if len(resp.Tokens) == 0 {
			fmt.Printf("No badges for %s\n", args[0])
			return
		}
		for _, id := range resp.Tokens {
			fmt.Printf("  %d\n", id)
		}
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a BLS voter key pair",
	Run: func(cmd *cobra.Command, args []string) {
		sk, err := bls.NewSecretKey()
		if err != nil {
			fatalf("failed to generate key: %v", err)
		}
		fmt.Printf("Secret key: %s\n", hex.EncodeToString(bls.SecretKeyToBytes(sk)))
		fmt.Printf("Public key: %s\n", hex.EncodeToString(bls.PublicKeyToCompressedBytes(bls.PublicFromSecretKey(sk))))
	},
}

// loadKey returns the BLS secret key from --key or --key-file, or nil when
// neither is set.
func loadKey() *bls.SecretKey {
	raw := keyHex
	if raw == "" && keyFile != "" {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			fatalf("failed to read key file: %v", err)
		}
		raw = strings.TrimSpace(string(data))
	}
	if raw == "" {
		return nil
	}

	skBytes, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		fatalf("invalid secret key: %v", err)
	}
	sk, err := bls.SecretKeyFromBytes(skBytes)
	if err != nil {
		fatalf("invalid secret key: %v", err)
	}
	return sk
}

func getJSON(path string, out interface{}) error {
	resp, err := http.Get(apiURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func postJSON(path string, in interface{}, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := http.Post(apiURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode != http.StatusOK {
		var errResp service.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("%s (%d)", errResp.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
