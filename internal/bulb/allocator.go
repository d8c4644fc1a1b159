package bulb

// MaxChannels is the number of receiver channels a transmitter addresses.
const MaxChannels = 32

// AllocateChannel returns the lowest channel in [0,MaxChannels) that is not
// in occupied. Values outside that range are ignored. It returns
// ErrNoChannelAvailable when every channel is taken.
func AllocateChannel(occupied []int) (int, error) {
	return AllocateChannelExcluding(occupied)
}

// AllocateChannelExcluding is AllocateChannel with the channels in ignore
// treated as free even when they appear in occupied, for re-picking a
// channel on behalf of a bulb that already owns one.
func AllocateChannelExcluding(occupied []int, ignore ...int) (int, error) {
	var used [MaxChannels]bool
	for _, ch := range occupied {
		if ValidChannel(ch) {
			used[ch] = true
		}
	}
	for _, ch := range ignore {
		if ValidChannel(ch) {
			used[ch] = false
		}
	}

	for ch, taken := range used {
		if !taken {
			return ch, nil
		}
	}
	return 0, ErrNoChannelAvailable
}
