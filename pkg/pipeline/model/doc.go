// Package model provides the data structures shared by the pipeline package and its options.
// It defines the stage descriptions passed to option hooks and the option contract itself.
package model
