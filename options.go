package poolcache

// FlatOptions tune a FlatCache. All fields are optional.
type FlatOptions struct {
	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
}

// PoolOptions tune a Pool. All fields are optional.
type PoolOptions struct {
	// Name is the pool suffix: the backend group is "Cache_Pool_<Name>", or
	// "DEFAULT_Cache_Pool" when empty.
	Name string

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
}
