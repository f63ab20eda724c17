// Package application decide allow/deny a partir do limiter de cada cliente.
package application
