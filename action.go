package cellz

// Bind returns a function that runs reducer with its argument against the
// current value of c, through Set with the given mode.
//
// Example:
//
//	add := cellz.Bind(todos, func(prev []Todo, uc *cellz.UpdateContext[[]Todo], t Todo) ([]Todo, error) {
//	    return append(uc.Clone(), t), nil
//	})
//	add(Todo{Title: "ship"})
func Bind[T, A any](c *Container[T], reducer func(prev T, uc *UpdateContext[T], arg A) (T, error), mode ...Mode) func(A) {
	return func(arg A) {
		c.Set(Reduce(func(prev T, uc *UpdateContext[T]) (T, error) {
			return reducer(prev, uc, arg)
		}), mode...)
	}
}

// BindWith is Bind for reducers that return an Update, such as an Async
// request started from the argument.
func BindWith[T, A any](c *Container[T], reducer func(prev T, uc *UpdateContext[T], arg A) (Update[T], error), mode ...Mode) func(A) {
	return func(arg A) {
		c.Set(ReduceWith(func(prev T, uc *UpdateContext[T]) (Update[T], error) {
			return reducer(prev, uc, arg)
		}), mode...)
	}
}
