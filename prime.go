package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net"
)

type PrimeRequest struct {
	// Method must always contain "isPrime".
	Method *string `json:"method"`
	// Number is any valid JSON number, including floating-point values.
	Number *float64 `json:"number"`
}

type PrimeResponse struct {
	// Method must always contain "isPrime".
	Method string `json:"method"`
	// Prime is true if the number in the PrimeRequest was prime, false if it was not.
	Prime bool `json:"prime"`
}

// checkPrimes answers newline-delimited JSON primality requests, one
// response line per request, in order.
//
// A request is malformed if it is not a well-formed JSON object, if a
// required field is missing, if the method name is not "isPrime", or if the
// number value is not a number. The first malformed request is answered with
// a malformed response and the client is disconnected.
func checkPrimes(conn net.Conn) error {
	defer CloseOrLog(conn)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var r PrimeRequest
		err := json.Unmarshal(scanner.Bytes(), &r)
		if err != nil || r.Method == nil || r.Number == nil || *r.Method != "isPrime" {
			if err := writePrimeResponse(conn, PrimeResponse{Method: "malformed"}); err != nil {
				return err
			}
			return nil
		}
		if err := writePrimeResponse(conn, PrimeResponse{Method: "isPrime", Prime: isPrime(*r.Number)}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("prime: %w", err)
	}
	return nil
}

func writePrimeResponse(conn net.Conn, resp PrimeResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("prime: marshal response: %w", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("prime: write response: %w", err)
	}
	return nil
}

// isPrime reports whether number is a prime integer. Fractional and negative
// numbers are never prime.
func isPrime(number float64) bool {
	if math.IsInf(number, 0) || number != math.Trunc(number) || number < 2 {
		return false
	}
	n, _ := big.NewFloat(number).Int(nil)
	return n.ProbablyPrime(0)
}
