// Package logx is ytc's structured logger, a thin layer over zerolog.
//
// Console output is human readable when stderr is a terminal and plain
// otherwise, so journald captures uncolored lines. Setting JSON switches the
// console to one JSON object per line. The optional file sink is always JSON.
package logx
